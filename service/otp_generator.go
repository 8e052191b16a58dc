package service

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// DefaultOTPLength is used when a caller asks for a non-positive length
const DefaultOTPLength = 6

// OTPGenerator produces fixed-length numeric codes
type OTPGenerator interface {
	Generate(length int) (string, error)
}

// NumericGenerator draws codes uniformly from [0, 10^length) using crypto/rand
type NumericGenerator struct {
	random io.Reader
}

// NewNumericGenerator creates a generator backed by crypto/rand
func NewNumericGenerator() *NumericGenerator {
	return &NumericGenerator{random: rand.Reader}
}

// Generate returns a zero-padded code of exactly length digits
func (g *NumericGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultOTPLength
	}

	maxValue := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)

	randomNumber, err := rand.Int(g.random, maxValue)
	if err != nil {
		return "", fmt.Errorf("failed to generate random number: %w", err)
	}

	// Left-pad with zeros
	digits := randomNumber.String()
	return strings.Repeat("0", length-len(digits)) + digits, nil
}
