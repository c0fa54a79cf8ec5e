package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// NormalizeEmail normalizes email addresses (lowercase and trim)
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CollapseSpaces trims s and squeezes internal runs of whitespace, including
// newlines, to one space. Used for values that end up in email headers.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RandomToken returns n random bytes hex encoded.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
