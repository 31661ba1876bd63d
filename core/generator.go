package core

import (
	"crypto/rand"
	"fmt"
	"math/big"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GenerateSecurityCode returns length cryptographically-random digits.
// Leading zeros are allowed; the code is a string, never a number.
func GenerateSecurityCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("phoneverify: security code length must be positive, got %d", length)
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("phoneverify: generate security code: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

// GenerateSessionToken returns a signed token binding the phone number to one
// registration attempt. A fresh nonce makes repeated registrations for the
// same number produce different tokens. Signing failure is a configuration
// error and is never swallowed.
func GenerateSessionToken(secretKey, phoneNumber string) (string, error) {
	claims := jwt.MapClaims{
		"phone_number": phoneNumber,
		"nonce":        uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("phoneverify: sign session token: %w", err)
	}
	return token, nil
}
