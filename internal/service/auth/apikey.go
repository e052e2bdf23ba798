package auth

import (
	"crypto/sha256"
	"crypto/subtle"
)

// APIKeyVerifier verifies presented API keys against the configured key.
// Comparison runs over SHA-256 digests in constant time, so neither key
// length nor content leaks through timing.
type APIKeyVerifier struct {
	keyDigest [sha256.Size]byte
	enabled   bool
}

// NewAPIKeyVerifier creates a verifier for the configured key. An empty
// key disables API key auth entirely; Verify then rejects everything.
func NewAPIKeyVerifier(key string) *APIKeyVerifier {
	v := &APIKeyVerifier{enabled: key != ""}
	if v.enabled {
		v.keyDigest = sha256.Sum256([]byte(key))
	}
	return v
}

// Enabled reports whether an API key is configured.
func (v *APIKeyVerifier) Enabled() bool {
	return v.enabled
}

// Verify checks the presented key. Returns ErrInvalidAPIKey on mismatch or
// when no key is configured.
func (v *APIKeyVerifier) Verify(presented string) error {
	if !v.enabled {
		return ErrInvalidAPIKey
	}
	digest := sha256.Sum256([]byte(presented))
	if subtle.ConstantTimeCompare(v.keyDigest[:], digest[:]) != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}
