package services

import (
	"context"
	"fmt"

	"github.com/CoachCoe/polkadot-sso/domain"
	serrors "github.com/CoachCoe/polkadot-sso/errors"
	"github.com/CoachCoe/polkadot-sso/internal/crypto"
	"github.com/CoachCoe/polkadot-sso/internal/federation"
	"github.com/rs/zerolog/log"
)

// OAuthProof is the authorization code returned to the provider callback.
type OAuthProof struct {
	Code  string
	State string
}

func (OAuthProof) ProviderKind() domain.ProviderKind { return domain.ProviderOAuth2 }
func (p OAuthProof) CallerState() string             { return p.State }

// OAuthVerifier completes an OpenID Connect login started by ChallengeService.
type OAuthVerifier struct {
	providers     *federation.Registry
	fetchUserInfo bool
}

func NewOAuthVerifier(providers *federation.Registry, fetchUserInfo bool) *OAuthVerifier {
	return &OAuthVerifier{providers: providers, fetchUserInfo: fetchUserInfo}
}

func (*OAuthVerifier) Kind() domain.ProviderKind { return domain.ProviderOAuth2 }

func (v *OAuthVerifier) VerifyProof(ctx context.Context, challenge *domain.Challenge, proof Proof) (*Identity, error) {
	p, ok := proof.(OAuthProof)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrProviderMismatch, proof)
	}

	if p.Code == "" {
		return nil, federation.ErrExchangeCodeFailed
	}

	provider, err := v.providers.Get(challenge.ProviderName)
	if err != nil {
		return nil, serrors.NewServiceUnavailable("identity provider not configured", err)
	}

	token, err := provider.Exchange(ctx, p.Code, challenge.CodeVerifier)
	if err != nil {
		return nil, err
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken == "" {
		return nil, federation.ErrMissingIDToken
	}

	claims, err := provider.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}

	if !crypto.ConstantTimeEqual(claims.Nonce, challenge.Nonce) {
		return nil, federation.ErrNonceMismatch
	}

	identity := &Identity{
		Subject: provider.Name() + ":" + claims.Subject,
		Claims: map[string]string{
			"provider": provider.Name(),
			"sub":      claims.Subject,
		},
	}

	if claims.Email != "" {
		identity.Claims["email"] = claims.Email
		identity.Claims["email_verified"] = fmt.Sprint(claims.EmailVerified)
	}

	if claims.Name != "" {
		identity.Claims["name"] = claims.Name
	}

	if v.fetchUserInfo {
		info, err := provider.FetchUserInfo(ctx, token)
		if err != nil {
			// ID token claims are enough to log in.
			log.Warn().Err(err).Str("provider", provider.Name()).Msg("Userinfo fetch failed")
		} else {
			if info.ProviderUserID != "" && info.ProviderUserID != claims.Subject {
				return nil, fmt.Errorf("%w: userinfo subject differs from id token", federation.ErrFetchUserInfoFailed)
			}

			if info.Email != "" {
				identity.Claims["email"] = info.Email
				identity.Claims["email_verified"] = fmt.Sprint(info.EmailVerified)
			}

			if info.Name != "" {
				identity.Claims["name"] = info.Name
			}
		}
	}

	return identity, nil
}
