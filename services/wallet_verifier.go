package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/CoachCoe/polkadot-sso/domain"
	"github.com/CoachCoe/polkadot-sso/internal/crypto"
	"github.com/CoachCoe/polkadot-sso/internal/wallet"
	"github.com/rs/zerolog/log"
)

// WalletProof is a signed statement from a Polkadot wallet.
type WalletProof struct {
	Address      string
	Signature    string
	CodeVerifier string
	State        string
}

func (WalletProof) ProviderKind() domain.ProviderKind { return domain.ProviderWallet }
func (p WalletProof) CallerState() string             { return p.State }

// WalletVerifier checks sr25519, ed25519 and ecdsa signatures over the issued statement.
type WalletVerifier struct{}

func NewWalletVerifier() *WalletVerifier {
	return &WalletVerifier{}
}

func (*WalletVerifier) Kind() domain.ProviderKind { return domain.ProviderWallet }

func (*WalletVerifier) VerifyProof(_ context.Context, challenge *domain.Challenge, proof Proof) (*Identity, error) {
	p, ok := proof.(WalletProof)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrProviderMismatch, proof)
	}

	if !crypto.VerifyPKCE(p.CodeVerifier, challenge.CodeChallenge) {
		return nil, ErrVerifierMismatch
	}

	addr, err := wallet.DecodeAddress(p.Address)
	if err != nil {
		return nil, err
	}

	if challenge.SubjectHint != "" {
		hint, err := wallet.DecodeAddress(challenge.SubjectHint)
		if err != nil || !bytes.Equal(hint.PublicKey, addr.PublicKey) {
			return nil, ErrSubjectMismatch
		}
	}

	message := wallet.BindAddress(challenge.Message, p.Address)

	scheme, err := wallet.Verify(p.Address, message, p.Signature)
	if err != nil {
		return nil, err
	}

	account, err := addr.Canonical()
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("challenge_id", challenge.ID).
		Str("scheme", string(scheme)).
		Uint16("network", addr.Network).
		Msg("Wallet signature accepted")

	return &Identity{
		Subject: "wallet:" + account,
		Claims: map[string]string{
			"address": p.Address,
			"account": account,
			"scheme":  string(scheme),
			"network": fmt.Sprint(addr.Network),
		},
	}, nil
}
