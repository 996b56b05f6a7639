package services

import (
	"context"

	"github.com/CoachCoe/polkadot-sso/domain"
)

// LoginResult is what a successful login hands back to the browser.
type LoginResult struct {
	Identity    *Identity
	Session     *domain.Session
	RedirectURL string
}

// LoginService ties verification, session creation and the client redirect together.
type LoginService struct {
	engine  *VerificationEngine
	issuer  *SessionIssuer
	clients ClientDirectory
}

func NewLoginService(engine *VerificationEngine, issuer *SessionIssuer, clients ClientDirectory) *LoginService {
	return &LoginService{engine: engine, issuer: issuer, clients: clients}
}

// Complete verifies proof for the referenced challenge and returns the redirect carrying
// a fresh authorization code and the caller's state.
func (s *LoginService) Complete(ctx context.Context, challengeRef string, proof Proof) (*LoginResult, error) {
	identity, err := s.engine.Verify(ctx, challengeRef, proof)
	if err != nil {
		return nil, err
	}

	c, err := s.clients.GetClient(ctx, identity.ClientID)
	if err != nil {
		return nil, err
	}

	session, code, err := s.issuer.CreateSession(ctx, identity, c.ID)
	if err != nil {
		return nil, err
	}

	redirect, err := s.issuer.BuildRedirect(c, code, proof.CallerState())
	if err != nil {
		return nil, err
	}

	return &LoginResult{Identity: identity, Session: session, RedirectURL: redirect}, nil
}
