package service

import (
	"crypto/hmac"
	"crypto/sha256"
)

// SharedSecretVerifier implements ports.SecretVerifier for the processor's webhook header.
type SharedSecretVerifier struct {
	expected []byte
}

// NewSharedSecretVerifier creates a verifier for the configured webhook secret.
// An empty secret rejects every request.
func NewSharedSecretVerifier(secret string) *SharedSecretVerifier {
	return &SharedSecretVerifier{expected: []byte(secret)}
}

// Verify compares presented against the configured secret in constant time.
// Both sides are hashed first so the comparison does not leak the secret length.
func (v *SharedSecretVerifier) Verify(presented string) bool {
	if len(v.expected) == 0 || presented == "" {
		return false
	}
	a := sha256.Sum256([]byte(presented))
	b := sha256.Sum256(v.expected)
	return hmac.Equal(a[:], b[:])
}
