package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var codeSpace = big.NewInt(1000000)

// RandomCodeGenerator implements ports.CodeGenerator with crypto/rand.
type RandomCodeGenerator struct{}

// NewRandomCodeGenerator creates a new RandomCodeGenerator.
func NewRandomCodeGenerator() *RandomCodeGenerator {
	return &RandomCodeGenerator{}
}

// SixDigitCode returns a uniformly random code in [000000, 999999].
// Zero-padded so the code is always exactly six digits.
func (RandomCodeGenerator) SixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generating completion code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
