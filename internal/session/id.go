package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateToken returns a cryptographically secure session token.
// 32 bytes = 256 bits of entropy.
func GenerateToken() (string, error) {
	const size = 32

	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
