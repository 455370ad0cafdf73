package qr

import (
	"github.com/skip2/go-qrcode"
)

// Generator renders the PNG image scanned at the door. The payload is
// the opaque string persisted on the ticket at creation time; door
// verification works by exact payload lookup, so the image carries no
// other data.
type Generator struct {
	size int
}

func NewGenerator() *Generator {
	return &Generator{size: 256}
}

func (g *Generator) GeneratePNG(payload string) ([]byte, error) {
	return qrcode.Encode(payload, qrcode.Medium, g.size)
}
