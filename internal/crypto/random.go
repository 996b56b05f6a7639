package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// RandomBytes returns n bytes from the system CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}

	return b, nil
}

// RandomBase64URL returns n random bytes encoded as unpadded base64url.
func RandomBase64URL(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RandomHex returns n random bytes hex encoded.
func RandomHex(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// HashToken returns the hex SHA-256 of a secret value. Only this form is ever stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}

// S256Challenge derives the PKCE S256 code challenge of a verifier.
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))

	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// LegacyHexChallenge derives the hex form older clients stored for the same verifier.
func LegacyHexChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))

	return hex.EncodeToString(sum[:])
}

// VerifyPKCE reports whether verifier matches the stored challenge in either encoding.
// Both comparisons always run.
func VerifyPKCE(verifier, storedChallenge string) bool {
	if verifier == "" || storedChallenge == "" {
		return false
	}

	b64 := ConstantTimeEqual(S256Challenge(verifier), storedChallenge)
	hx := ConstantTimeEqual(LegacyHexChallenge(verifier), storedChallenge)

	return b64 || hx
}

// ConstantTimeEqual compares two strings without leaking the position of the first difference.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
