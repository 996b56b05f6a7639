package wallet

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrSignatureFormat  = errors.New("malformed signature")
)

// SigningContext is the sr25519 context used by Substrate for raw message signing.
var SigningContext = []byte("substrate")

// Scheme identifies which key type produced a valid signature.
type Scheme string

const (
	SchemeSr25519 Scheme = "sr25519"
	SchemeEd25519 Scheme = "ed25519"
	SchemeEcdsa   Scheme = "ecdsa"
)

// WrapBytes applies the envelope polkadot-js signRaw adds around raw payloads.
func WrapBytes(message string) string {
	return "<Bytes>" + message + "</Bytes>"
}

// DecodeSignature accepts 0x-prefixed hex, plain hex or base64 input.
func DecodeSignature(sig string) ([]byte, error) {
	sig = strings.TrimSpace(sig)
	if sig == "" {
		return nil, ErrSignatureFormat
	}

	if strings.HasPrefix(sig, "0x") || strings.HasPrefix(sig, "0X") {
		b, err := hex.DecodeString(sig[2:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSignatureFormat, err)
		}

		return b, nil
	}

	if b, err := hex.DecodeString(sig); err == nil {
		return b, nil
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(sig); err == nil {
			return b, nil
		}
	}

	return nil, ErrSignatureFormat
}

// Verify checks sig over message (or its <Bytes> wrapped form) for the given SS58 address.
// 64-byte signatures are tried as sr25519 then ed25519; 65-byte ones as recoverable ecdsa.
func Verify(address, message, signature string) (Scheme, error) {
	addr, err := DecodeAddress(address)
	if err != nil {
		return "", err
	}

	sig, err := DecodeSignature(signature)
	if err != nil {
		return "", err
	}

	candidates := [][]byte{[]byte(message), []byte(WrapBytes(message))}

	switch len(sig) {
	case 64:
		if len(addr.PublicKey) != 32 {
			return "", ErrInvalidSignature
		}

		for _, msg := range candidates {
			if verifySr25519(addr.PublicKey, msg, sig) {
				return SchemeSr25519, nil
			}
		}

		for _, msg := range candidates {
			if ed25519.Verify(ed25519.PublicKey(addr.PublicKey), msg, sig) {
				return SchemeEd25519, nil
			}
		}
	case 65:
		for _, msg := range candidates {
			if verifyEcdsa(addr.PublicKey, msg, sig) {
				return SchemeEcdsa, nil
			}
		}
	default:
		return "", fmt.Errorf("%w: length %d", ErrSignatureFormat, len(sig))
	}

	return "", ErrInvalidSignature
}

func verifySr25519(pub, msg, sig []byte) bool {
	var pk [32]byte
	copy(pk[:], pub)

	publicKey := new(schnorrkel.PublicKey)
	if err := publicKey.Decode(pk); err != nil {
		return false
	}

	var raw [64]byte
	copy(raw[:], sig)

	// Decode rejects signatures without the schnorrkel marker bit, which filters out ed25519.
	s := new(schnorrkel.Signature)
	if err := s.Decode(raw); err != nil {
		return false
	}

	ok, err := publicKey.Verify(s, schnorrkel.NewSigningContext(SigningContext, msg))

	return err == nil && ok
}

// verifyEcdsa recovers the signer of blake2b-256(msg) from an R||S||v signature.
func verifyEcdsa(account, msg, sig []byte) bool {
	v := sig[64]
	if v >= 27 {
		v -= 27
	}

	if v > 3 {
		return false
	}

	compact := make([]byte, 65)
	compact[0] = 27 + 4 + v
	copy(compact[1:], sig[:64])

	digest := blake2b.Sum256(msg)

	pub, _, err := ecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return false
	}

	compressed := pub.SerializeCompressed()

	switch len(account) {
	case 33:
		return string(compressed) == string(account)
	case 32:
		id := blake2b.Sum256(compressed)

		return string(id[:]) == string(account)
	}

	return false
}
