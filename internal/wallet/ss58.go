// Package wallet verifies Substrate account signatures over login statements.
package wallet

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrInvalidAddress  = errors.New("invalid ss58 address")
	ErrInvalidChecksum = errors.New("invalid ss58 checksum")
)

var ss58Prefix = []byte("SS58PRE")

const checksumLen = 2

// Address is a decoded SS58 address.
type Address struct {
	Network uint16
	// PublicKey is the 32-byte account id, or a 33-byte compressed ecdsa key.
	PublicKey []byte
}

// GenericNetwork is the generic Substrate SS58 prefix used for canonical addresses.
const GenericNetwork uint16 = 42

// Canonical renders the account under GenericNetwork, so every network encoding of
// one key yields the same string.
func (a *Address) Canonical() (string, error) {
	return EncodeAddress(GenericNetwork, a.PublicKey)
}

// DecodeAddress parses an SS58 string, supporting 1- and 2-byte network prefixes.
func DecodeAddress(addr string) (*Address, error) {
	data, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	if len(data) < 3 {
		return nil, ErrInvalidAddress
	}

	var (
		network   uint16
		prefixLen int
	)

	switch {
	case data[0] < 64:
		network = uint16(data[0])
		prefixLen = 1
	case data[0] < 128:
		lower := (data[0] << 2) | (data[1] >> 6)
		upper := data[1] & 0b0011_1111
		network = uint16(lower) | uint16(upper)<<8
		prefixLen = 2
	default:
		return nil, ErrInvalidAddress
	}

	keyLen := len(data) - prefixLen - checksumLen
	if keyLen != 32 && keyLen != 33 {
		return nil, fmt.Errorf("%w: unexpected length %d", ErrInvalidAddress, len(data))
	}

	body := data[:len(data)-checksumLen]
	sum := checksum(body)
	if !bytes.Equal(sum, data[len(data)-checksumLen:]) {
		return nil, ErrInvalidChecksum
	}

	return &Address{
		Network:   network,
		PublicKey: append([]byte(nil), data[prefixLen:prefixLen+keyLen]...),
	}, nil
}

// EncodeAddress renders a public key under the given network prefix.
func EncodeAddress(network uint16, pub []byte) (string, error) {
	if network > 16383 || network == 46 || network == 47 {
		return "", fmt.Errorf("%w: reserved network %d", ErrInvalidAddress, network)
	}

	var prefix []byte
	if network < 64 {
		prefix = []byte{byte(network)}
	} else {
		first := byte((network&0b0000_0000_1111_1100)>>2) | 0b0100_0000
		second := byte(network>>8) | byte((network&0b0000_0000_0000_0011)<<6)
		prefix = []byte{first, second}
	}

	body := append(prefix, pub...)
	body = append(body, checksum(body)...)

	return base58.Encode(body), nil
}

func checksum(body []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write(ss58Prefix)
	h.Write(body)

	return h.Sum(nil)[:checksumLen]
}
