package crypto_test

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/CoachCoe/polkadot-sso/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS256ChallengeMatchesRFC7636Vector(t *testing.T) {
	// Appendix B of RFC 7636.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", crypto.S256Challenge(verifier))
}

func TestVerifyPKCEAcceptsBothEncodings(t *testing.T) {
	verifier, err := crypto.RandomBase64URL(32)
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(verifier))
	b64 := base64.RawURLEncoding.EncodeToString(sum[:])

	assert.True(t, crypto.VerifyPKCE(verifier, b64))
	assert.True(t, crypto.VerifyPKCE(verifier, crypto.LegacyHexChallenge(verifier)))
	assert.False(t, crypto.VerifyPKCE(verifier+"x", b64))
	assert.False(t, crypto.VerifyPKCE("", b64))
	assert.False(t, crypto.VerifyPKCE(verifier, ""))
}

func TestRandomValues(t *testing.T) {
	a, err := crypto.RandomHex(16)
	require.NoError(t, err)
	b, err := crypto.RandomHex(16)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)

	c, err := crypto.RandomBase64URL(32)
	require.NoError(t, err)
	assert.Len(t, c, 43)
}

func TestHashToken(t *testing.T) {
	h := crypto.HashToken("code")

	assert.Len(t, h, 64)
	assert.Equal(t, h, crypto.HashToken("code"))
	assert.NotEqual(t, h, crypto.HashToken("code2"))
}
