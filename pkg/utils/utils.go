package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// NormalizeEmail lower-cases and trims an email address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GenerateNumericCode returns a crypto-random code of n decimal digits.
func GenerateNumericCode(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("code length must be positive")
	}

	var sb strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		sb.WriteString(d.String())
	}
	return sb.String(), nil
}
