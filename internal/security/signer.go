package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
)

// ErrNoSecret indicates the signer was constructed without a signing key.
var ErrNoSecret = errors.New("security: signing secret is not configured")

// Signer computes and verifies link signatures binding a token, an offer id,
// and an expiry instant. The signature is the bearer credential carried in
// the link; the stored token is a second, independent secret.
type Signer struct {
	secret []byte
}

// NewSigner constructs a Signer from the configured secret.
func NewSigner(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns the unpadded base64url HMAC-SHA256 of the canonical message
// for (token, offerID, expiresAt).
func (s *Signer) Sign(token, offerID string, expiresAt int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(canonicalMessage(token, offerID, expiresAt))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares in constant time. It returns
// false on any mismatch, including undecodable signature input.
func (s *Signer) Verify(token, offerID string, expiresAt int64, signature string) bool {
	supplied, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(canonicalMessage(token, offerID, expiresAt))
	return hmac.Equal(mac.Sum(nil), supplied)
}

// canonicalMessage frames each field with a big-endian uint32 length prefix.
// No choice of adjacent field values can produce the same byte stream, which
// closes the concatenation-boundary forgery a plain delimiter join allows.
func canonicalMessage(token, offerID string, expiresAt int64) []byte {
	exp := strconv.FormatInt(expiresAt, 10)
	buf := make([]byte, 0, 12+len(token)+len(offerID)+len(exp))
	for _, field := range []string{token, offerID, exp} {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(field)))
		buf = append(buf, field...)
	}
	return buf
}

// TokensEqual compares two opaque tokens in constant time.
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
