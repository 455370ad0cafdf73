package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const courtesyCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateCourtesyCode returns an 8-character random code prefixed with
// "CDPI", e.g. "CDPI7XK2Q9AZ".
func GenerateCourtesyCode() string {
	code := make([]byte, 8)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(courtesyCodeAlphabet))))
		if err != nil {
			// crypto/rand failing is unrecoverable for code generation
			panic(fmt.Sprintf("courtesy code generation: %v", err))
		}
		code[i] = courtesyCodeAlphabet[n.Int64()]
	}
	return "CDPI" + string(code)
}

// GenerateQRPayload returns the opaque string embedded in a ticket's QR
// code at creation time.
func GenerateQRPayload() string {
	return "QR-" + uuid.NewString()
}

// FormatCents renders integer centavos as a two-decimal string, e.g.
// 10500 -> "105.00". Used at the payment-provider boundary and in email
// bodies; amounts are never held as floats.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
