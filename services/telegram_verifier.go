package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/CoachCoe/polkadot-sso/domain"
	"github.com/CoachCoe/polkadot-sso/internal/crypto"
	"github.com/CoachCoe/polkadot-sso/internal/telegram"
)

// TelegramProof is a Login Widget assertion plus the challenge's code verifier.
type TelegramProof struct {
	Assertion    telegram.Assertion
	CodeVerifier string
	State        string
}

func (TelegramProof) ProviderKind() domain.ProviderKind { return domain.ProviderTelegram }
func (p TelegramProof) CallerState() string             { return p.State }

// TelegramVerifier checks Telegram Login Widget assertions.
type TelegramVerifier struct {
	validator *telegram.Validator
}

func NewTelegramVerifier(validator *telegram.Validator) *TelegramVerifier {
	return &TelegramVerifier{validator: validator}
}

func (*TelegramVerifier) Kind() domain.ProviderKind { return domain.ProviderTelegram }

func (v *TelegramVerifier) VerifyProof(_ context.Context, challenge *domain.Challenge, proof Proof) (*Identity, error) {
	p, ok := proof.(TelegramProof)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrProviderMismatch, proof)
	}

	if !crypto.VerifyPKCE(p.CodeVerifier, challenge.CodeChallenge) {
		return nil, ErrVerifierMismatch
	}

	if err := v.validator.Validate(p.Assertion); err != nil {
		return nil, err
	}

	id := strconv.FormatInt(p.Assertion.ID, 10)
	claims := map[string]string{"telegram_id": id}

	if p.Assertion.Username != "" {
		claims["username"] = p.Assertion.Username
	}

	if p.Assertion.FirstName != "" {
		claims["first_name"] = p.Assertion.FirstName
	}

	return &Identity{Subject: "telegram:" + id, Claims: claims}, nil
}
