package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt work factor for passwords and one-time tokens.
const DefaultHashCost = 10

func HashPassword(plaintext string) (string, error) {
	return HashSecret(plaintext, DefaultHashCost)
}

func VerifyPassword(hash, plaintext string) (bool, error) {
	return VerifySecret(hash, plaintext)
}

// HashSecret hashes plaintext with bcrypt at the given cost. A cost of zero
// selects DefaultHashCost.
func HashSecret(plaintext string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultHashCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(h), nil
}

func VerifySecret(hash, plaintext string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("bcrypt compare: %w", err)
	}
}
