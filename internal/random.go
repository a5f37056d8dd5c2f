package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// ResetTokenSize is the number of random bytes behind a password reset token.
const ResetTokenSize = 32

// ErrMalformedToken is returned for strings that cannot be a reset token.
var ErrMalformedToken = errors.New("malformed token")

// NewResetToken returns a base64url (no padding) token over ResetTokenSize
// bytes from crypto/rand.
func NewResetToken() (string, error) {
	var raw [ResetTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// ParseResetToken checks that token decodes to exactly ResetTokenSize bytes.
func ParseResetToken(token string) error {
	if len(token) != base64.RawURLEncoding.EncodedLen(ResetTokenSize) {
		return ErrMalformedToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != ResetTokenSize {
		return ErrMalformedToken
	}
	return nil
}

// HashToken returns the hex SHA-256 of token. Only this digest is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
