package cryptopredicate_test

import (
	"testing"

	"github.com/cuemby/fabric/pkg/cryptopredicate"
	"github.com/stretchr/testify/assert"
)

func TestVerifyAcceptsMatchingProof(t *testing.T) {
	v := cryptopredicate.NewHMACVerifier([]byte("shared-secret"))
	msg := []byte("bridgeId=abc;amount=100")
	proof := v.Sign(msg)

	assert.True(t, v.Verify(msg, proof))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	v := cryptopredicate.NewHMACVerifier([]byte("shared-secret"))
	proof := v.Sign([]byte("bridgeId=abc;amount=100"))

	assert.False(t, v.Verify([]byte("bridgeId=abc;amount=999"), proof))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	signer := cryptopredicate.NewHMACVerifier([]byte("key-a"))
	verifier := cryptopredicate.NewHMACVerifier([]byte("key-b"))
	msg := []byte("bridgeId=abc;amount=100")

	proof := signer.Sign(msg)
	assert.False(t, verifier.Verify(msg, proof))
}

func TestVerifyRejectsGarbageProof(t *testing.T) {
	v := cryptopredicate.NewHMACVerifier([]byte("shared-secret"))
	assert.False(t, v.Verify([]byte("anything"), []byte("not-a-real-mac")))
}
