package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewOpaqueToken returns 256 random bits, hex encoded.
func NewOpaqueToken() (string, error) {
	return randomHex(32)
}

// NewOAuthState returns the anti-forgery state sent on provider redirects.
func NewOAuthState() (string, error) {
	return randomHex(16)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
