package qr_test

import (
	"bytes"
	"testing"

	"cdpi-pass/internal/fulfillment/qr"
	"cdpi-pass/internal/utils"
)

func TestGeneratePNG(t *testing.T) {
	gen := qr.NewGenerator()

	png, err := gen.GeneratePNG(utils.GenerateQRPayload())
	if err != nil {
		t.Fatalf("Failed to generate QR code: %v", err)
	}
	if len(png) == 0 {
		t.Error("Generated QR code is empty")
	}

	// PNG magic bytes, the upload pipeline sets image/png.
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("Expected PNG output")
	}
}

func TestGeneratePNGDistinctPayloads(t *testing.T) {
	gen := qr.NewGenerator()

	png1, err := gen.GeneratePNG("QR-one")
	if err != nil {
		t.Fatalf("Failed to generate first QR code: %v", err)
	}
	png2, err := gen.GeneratePNG("QR-two")
	if err != nil {
		t.Fatalf("Failed to generate second QR code: %v", err)
	}

	if bytes.Equal(png1, png2) {
		t.Error("Different payloads must render different QR codes")
	}
}

func TestGeneratePNGEmptyPayload(t *testing.T) {
	gen := qr.NewGenerator()
	if _, err := gen.GeneratePNG(""); err == nil {
		t.Error("Expected error for empty payload")
	}
}
