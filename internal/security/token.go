package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// tokenBytes is the entropy of a generated offer token (128 bits).
const tokenBytes = 16

// GenerateToken creates a new opaque offer token: random bytes encoded as
// unpadded base64url, so it needs no escaping in a URL query component.
// Tokens are matched by equality against the stored value, never parsed.
func GenerateToken() (string, error) {
	secret := make([]byte, tokenBytes)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(secret), nil
}
