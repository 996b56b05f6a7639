package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"time"

	"github.com/CoachCoe/polkadot-sso/client"
	"github.com/CoachCoe/polkadot-sso/domain"
	serrors "github.com/CoachCoe/polkadot-sso/errors"
	"github.com/CoachCoe/polkadot-sso/internal/crypto"
	"github.com/CoachCoe/polkadot-sso/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const DefaultAuthCodeTTL = 5 * time.Minute

// SessionIssuer creates sessions for verified identities and hands out authorization codes.
type SessionIssuer struct {
	sessions domain.SessionRepository
	codes    domain.AuthorizationCodeRepository
	codeTTL  time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewSessionIssuer(
	sessions domain.SessionRepository,
	codes domain.AuthorizationCodeRepository,
	codeTTL time.Duration,
	m *metrics.Metrics,
) *SessionIssuer {
	if codeTTL <= 0 {
		codeTTL = DefaultAuthCodeTTL
	}

	return &SessionIssuer{
		sessions: sessions,
		codes:    codes,
		codeTTL:  codeTTL,
		metrics:  m,
		now:      time.Now,
	}
}

// Fingerprint correlates a session with its subject, client and creation nonce.
func Fingerprint(subject, clientID string, nonce []byte) string {
	h := sha256.New()
	h.Write([]byte(subject))
	h.Write([]byte{0})
	h.Write([]byte(clientID))
	h.Write([]byte{0})
	h.Write(nonce)

	return hex.EncodeToString(h.Sum(nil))
}

// CreateSession persists an active session without tokens and returns the
// one-time authorization code in clear. Only its hash is stored.
func (s *SessionIssuer) CreateSession(ctx context.Context, identity *Identity, clientID string) (*domain.Session, string, error) {
	if identity == nil || identity.Subject == "" {
		return nil, "", serrors.NewValidation("identity subject is required")
	}

	nonce, err := crypto.RandomBytes(16)
	if err != nil {
		return nil, "", err
	}

	now := s.now().UTC()
	session := &domain.Session{
		ID:          uuid.NewString(),
		Subject:     identity.Subject,
		ClientID:    clientID,
		Fingerprint: Fingerprint(identity.Subject, clientID, nonce),
		Claims:      identity.Claims,
		CreatedAt:   now,
		LastUsedAt:  now,
		Active:      true,
	}

	if err := s.sessions.StoreSession(ctx, session); err != nil {
		return nil, "", serrors.NewDatabase("store session", err)
	}

	code, err := crypto.RandomBase64URL(32)
	if err != nil {
		return nil, "", err
	}

	authCode := &domain.AuthorizationCode{
		CodeHash:  crypto.HashToken(code),
		Subject:   identity.Subject,
		ClientID:  clientID,
		SessionID: session.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.codeTTL),
	}

	if err := s.codes.SaveAuthCode(ctx, authCode); err != nil {
		return nil, "", serrors.NewDatabase("store authorization code", err)
	}

	s.metrics.SessionCreated()

	log.Info().
		Str("session_id", session.ID).
		Str("subject", session.Subject).
		Str("client_id", clientID).
		Msg("Session created")

	return session, code, nil
}

// BuildRedirect appends code and state to the client's registered redirect URL.
func (s *SessionIssuer) BuildRedirect(c *client.Client, code, state string) (string, error) {
	u, err := url.Parse(c.RedirectURL)
	if err != nil {
		return "", serrors.NewValidation("client redirect_url is invalid")
	}

	q := u.Query()
	q.Set("code", code)

	if state != "" {
		q.Set("state", state)
	}

	u.RawQuery = q.Encode()

	return u.String(), nil
}
