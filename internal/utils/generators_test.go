package utils_test

import (
	"strings"
	"testing"

	"cdpi-pass/internal/utils"
)

func TestGenerateCourtesyCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := utils.GenerateCourtesyCode()
		if !strings.HasPrefix(code, "CDPI") {
			t.Fatalf("Expected CDPI prefix, got %q", code)
		}
		if len(code) != 12 {
			t.Fatalf("Expected 12 characters, got %q", code)
		}
		if seen[code] {
			t.Fatalf("Duplicate code generated: %q", code)
		}
		seen[code] = true
	}
}

func TestGenerateQRPayload(t *testing.T) {
	p1 := utils.GenerateQRPayload()
	p2 := utils.GenerateQRPayload()
	if !strings.HasPrefix(p1, "QR-") {
		t.Errorf("Expected QR- prefix, got %q", p1)
	}
	if p1 == p2 {
		t.Error("Payloads must be unique")
	}
}

func TestFormatCents(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{500, "5.00"},
		{10500, "105.00"},
		{9999999, "99999.99"},
		{-10500, "-105.00"},
	}
	for _, c := range cases {
		if got := utils.FormatCents(c.cents); got != c.want {
			t.Errorf("FormatCents(%d) = %q, want %q", c.cents, got, c.want)
		}
	}
}
