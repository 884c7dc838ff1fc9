// Package cryptopredicate models bridge lock-proof verification as a
// pluggable predicate rather than a specific cryptographic scheme.
// Production-grade cryptography is out of scope; what matters to the
// rest of the fabric is that a Verifier is swappable and deterministic.
package cryptopredicate

import (
	"crypto/hmac"
	"crypto/sha256"
)

// Verifier checks a lock proof for a given message under some scheme.
type Verifier interface {
	Verify(message, proof []byte) bool
}

// HMACVerifier verifies proofs as HMAC-SHA256(key, message). It stands
// in for the bridge's real attestation scheme, which is out of scope.
type HMACVerifier struct {
	key []byte
}

// NewHMACVerifier builds a Verifier keyed by key.
func NewHMACVerifier(key []byte) *HMACVerifier {
	return &HMACVerifier{key: key}
}

// Verify reports whether proof is the correct HMAC-SHA256 of message
// under the verifier's key, using a constant-time comparison.
func (v *HMACVerifier) Verify(message, proof []byte) bool {
	mac := hmac.New(sha256.New, v.key)
	mac.Write(message)
	expected := mac.Sum(nil)
	return hmac.Equal(expected, proof)
}

// Sign computes the proof a matching HMACVerifier would accept. Used by
// tests and by trusted callers constructing transfer requests.
func (v *HMACVerifier) Sign(message []byte) []byte {
	mac := hmac.New(sha256.New, v.key)
	mac.Write(message)
	return mac.Sum(nil)
}
