package services

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidKeyID = errors.New("invalid key id")

type TokenSignerFunc func(claims jwt.Claims) (string, error)

// TokenSigner signs and parses HS256 tokens with a secret per key id.
type TokenSigner struct {
	keys    map[string]TokenSignerFunc
	secrets map[string][]byte
}

// NewTokenSigner creates a new Signer instance
func NewTokenSigner() *TokenSigner {
	return &TokenSigner{
		keys:    make(map[string]TokenSignerFunc),
		secrets: make(map[string][]byte),
	}
}

func (s *TokenSigner) AddKeySigner(keyID, secretKey string) {
	secret := []byte(secretKey)

	s.secrets[keyID] = secret
	s.keys[keyID] = func(claims jwt.Claims) (string, error) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

		tokenString, err := token.SignedString(secret)
		if err != nil {
			return "", fmt.Errorf("failed to sign token: %w", err)
		}

		return tokenString, nil
	}
}

func (s *TokenSigner) Sign(claims jwt.Claims, keyID string) (string, error) {
	if signer, ok := s.keys[keyID]; ok {
		return signer(claims)
	}

	return "", ErrInvalidKeyID
}

// Parse validates signature, algorithm and issuer of tokenString with keyID's secret
// and decodes it into claims. opts are appended to the parser options.
func (s *TokenSigner) Parse(tokenString, keyID, issuer string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	secret, ok := s.secrets[keyID]
	if !ok {
		return ErrInvalidKeyID
	}

	parserOpts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithIssuedAt(),
	}, opts...)

	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, parserOpts...)

	return err
}
