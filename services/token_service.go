package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/CoachCoe/polkadot-sso/cache"
	"github.com/CoachCoe/polkadot-sso/domain"
	serrors "github.com/CoachCoe/polkadot-sso/errors"
	"github.com/CoachCoe/polkadot-sso/internal/audit"
	"github.com/CoachCoe/polkadot-sso/internal/crypto"
	"github.com/CoachCoe/polkadot-sso/internal/metrics"
	"github.com/CoachCoe/polkadot-sso/tracing"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

var (
	ErrTokenType       = errors.New("unexpected token type")
	ErrTokenAudience   = errors.New("token audience does not match session client")
	ErrSessionInactive = errors.New("session is not active")
	ErrTokenSuperseded = errors.New("token is no longer current for its session")
	ErrTokenRevoked    = errors.New("token has been revoked")
)

// TokenKind distinguishes access from refresh tokens. It doubles as the signer key id.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// TokenClaims are the claims carried by both token kinds.
type TokenClaims struct {
	jwt.RegisteredClaims
	SessionID string    `json:"sid"`
	Type      TokenKind `json:"typ"`
}

// TokenPair is the result of a code exchange or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	SessionID    string `json:"-"`
}

// Introspection describes a valid access token.
type Introspection struct {
	Subject   string            `json:"subject"`
	ClientID  string            `json:"client_id"`
	SessionID string            `json:"session_id"`
	ExpiresAt time.Time         `json:"expires_at"`
	IssuedAt  time.Time         `json:"issued_at"`
	Claims    map[string]string `json:"claims,omitempty"`
}

// ExchangeRequest is an authorization_code grant.
type ExchangeRequest struct {
	Code         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// TokenConfig configures issued tokens.
type TokenConfig struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenService exchanges authorization codes for tokens and manages their lifecycle.
type TokenService struct {
	sessions domain.SessionRepository
	codes    domain.AuthorizationCodeRepository
	clients  ClientDirectory
	denylist cache.Denylist
	signer   *TokenSigner
	cfg      TokenConfig
	metrics  *metrics.Metrics
	audit    audit.Sink
	now      func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(
	sessions domain.SessionRepository,
	codeRepo domain.AuthorizationCodeRepository,
	clients ClientDirectory,
	denylist cache.Denylist,
	signer *TokenSigner,
	cfg TokenConfig,
	m *metrics.Metrics,
	sink audit.Sink,
) *TokenService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTokenTTL
	}

	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTokenTTL
	}

	if sink == nil {
		sink = audit.Nop{}
	}

	return &TokenService{
		sessions: sessions,
		codes:    codeRepo,
		clients:  clients,
		denylist: denylist,
		signer:   signer,
		cfg:      cfg,
		metrics:  m,
		audit:    sink,
		now:      time.Now,
	}
}

// Exchange redeems a one-time authorization code for a token pair.
func (s *TokenService) Exchange(ctx context.Context, req ExchangeRequest) (*TokenPair, error) {
	ctx, span := tracing.Tracer.Start(ctx, "TokenService.Exchange")
	defer span.End()

	span.SetAttributes(attribute.String("sso.client_id", req.ClientID))

	pair, err := s.exchange(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "code exchange failed")
	}

	s.metrics.CodeExchange(err == nil)

	event := audit.Event{Action: "code.exchange", ClientID: req.ClientID}
	if err != nil {
		log.Warn().Err(err).Str("client_id", req.ClientID).Msg("Code exchange failed")
		s.audit.Record(ctx, event.Failure(err))

		return nil, err
	}

	event.Target = pair.SessionID
	event.Success = true
	s.audit.Record(ctx, event)

	return pair, nil
}

func (s *TokenService) exchange(ctx context.Context, req ExchangeRequest) (*TokenPair, error) {
	c, err := s.clients.ValidateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	if err := s.clients.ValidateRedirectURI(c, req.RedirectURI); err != nil {
		return nil, err
	}

	if req.Code == "" {
		return nil, serrors.NewInvalidGrant("code is required")
	}

	code, err := s.codes.GetAuthCode(ctx, crypto.HashToken(req.Code))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, serrors.NewInvalidGrant("invalid authorization code")
		}

		return nil, serrors.NewDatabase("load authorization code", err)
	}

	if code.ClientID != c.ID {
		return nil, serrors.NewInvalidGrant("invalid authorization code")
	}

	if code.Used {
		return nil, serrors.NewInvalidGrant("authorization code already used")
	}

	if code.IsExpired(s.now()) {
		return nil, serrors.NewInvalidGrant("authorization code expired")
	}

	claimed, err := s.codes.ClaimAuthCode(ctx, code.CodeHash)
	if err != nil {
		return nil, serrors.NewDatabase("claim authorization code", err)
	}

	if !claimed {
		return nil, serrors.NewInvalidGrant("authorization code already used")
	}

	session, err := s.sessions.GetSessionByID(ctx, code.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, serrors.NewInvalidGrant("session not found")
		}

		return nil, serrors.NewDatabase("load session", err)
	}

	if !session.Active || session.ClientID != c.ID {
		return nil, serrors.NewInvalidGrant("session is not active")
	}

	return s.GenerateTokenPair(ctx, session)
}

// GenerateTokenPair issues a fresh access and refresh token for session and records
// their ids on it.
func (s *TokenService) GenerateTokenPair(ctx context.Context, session *domain.Session) (*TokenPair, error) {
	pair, err := s.issue(ctx, session, "")
	if err != nil {
		return nil, err
	}

	s.metrics.TokenPairCreated()

	return pair, nil
}

func (s *TokenService) issue(ctx context.Context, session *domain.Session, previousRefreshID string) (*TokenPair, error) {
	now := s.now().UTC().Truncate(time.Second)

	tokens := domain.SessionTokens{
		AccessTokenID:          uuid.NewString(),
		RefreshTokenID:         uuid.NewString(),
		AccessExpiresAt:        now.Add(s.cfg.AccessTTL),
		RefreshExpiresAt:       now.Add(s.cfg.RefreshTTL),
		PreviousRefreshTokenID: previousRefreshID,
	}

	accessToken, err := s.signer.Sign(s.claims(session, TokenAccess, tokens.AccessTokenID, now, tokens.AccessExpiresAt), string(TokenAccess))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := s.signer.Sign(s.claims(session, TokenRefresh, tokens.RefreshTokenID, now, tokens.RefreshExpiresAt), string(TokenRefresh))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.sessions.UpdateSessionTokens(ctx, session.ID, tokens); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if previousRefreshID != "" {
				return nil, serrors.NewTokenInvalid(ErrTokenSuperseded)
			}

			return nil, serrors.NewInvalidGrant("session is not active")
		}

		return nil, serrors.NewDatabase("update session tokens", err)
	}

	session.AccessTokenID = tokens.AccessTokenID
	session.RefreshTokenID = tokens.RefreshTokenID
	session.AccessExpiresAt = tokens.AccessExpiresAt
	session.RefreshExpiresAt = tokens.RefreshExpiresAt

	return &TokenPair{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTTL / time.Second),
		RefreshToken: refreshToken,
		SessionID:    session.ID,
	}, nil
}

func (s *TokenService) claims(session *domain.Session, kind TokenKind, jti string, now, exp time.Time) *TokenClaims {
	return &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   session.Subject,
			Audience:  jwt.ClaimStrings{session.ClientID},
			ExpiresAt: jwt.NewNumericDate(exp),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
		SessionID: session.ID,
		Type:      kind,
	}
}

// Verify validates a token of the given kind against its signature and its session.
// Every rejection is a TokenInvalid error.
func (s *TokenService) Verify(ctx context.Context, token string, kind TokenKind) (*TokenClaims, error) {
	claims, _, err := s.verify(ctx, token, kind)

	return claims, err
}

func (s *TokenService) verify(ctx context.Context, token string, kind TokenKind) (*TokenClaims, *domain.Session, error) {
	claims := &TokenClaims{}

	err := s.signer.Parse(token, string(kind), s.cfg.Issuer, claims,
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, nil, serrors.NewTokenInvalid(err)
	}

	if claims.Type != kind {
		return nil, nil, serrors.NewTokenInvalid(ErrTokenType)
	}

	session, err := s.sessions.GetSessionByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, serrors.NewTokenInvalid(err)
		}

		return nil, nil, serrors.NewDatabase("load session", err)
	}

	if !session.Active {
		return nil, nil, serrors.NewTokenInvalid(ErrSessionInactive)
	}

	if !slices.Contains(claims.Audience, session.ClientID) {
		return nil, nil, serrors.NewTokenInvalid(ErrTokenAudience)
	}

	current := session.AccessTokenID
	if kind == TokenRefresh {
		current = session.RefreshTokenID
	}

	if current == "" || !crypto.ConstantTimeEqual(current, claims.ID) {
		return nil, nil, serrors.NewTokenInvalid(ErrTokenSuperseded)
	}

	if kind == TokenRefresh {
		revoked, err := s.denylist.Contains(ctx, claims.ID)
		if err != nil {
			log.Error().Err(err).Str("session_id", session.ID).Msg("Denylist lookup failed")

			return nil, nil, serrors.NewTokenInvalid(err)
		}

		if revoked {
			return nil, nil, serrors.NewTokenInvalid(ErrTokenRevoked)
		}
	}

	if kind == TokenAccess {
		if err := s.sessions.TouchSession(ctx, session.ID, s.now().UTC()); err != nil {
			log.Warn().Err(err).Str("session_id", session.ID).Msg("Failed to update session last use")
		}
	}

	return claims, session, nil
}

// Refresh rotates both tokens of a session. The presented refresh token is denylisted
// for the rest of its lifetime and can never be used again.
func (s *TokenService) Refresh(ctx context.Context, refreshToken, clientID, clientSecret string) (*TokenPair, error) {
	ctx, span := tracing.Tracer.Start(ctx, "TokenService.Refresh")
	defer span.End()

	span.SetAttributes(attribute.String("sso.client_id", clientID))

	c, err := s.clients.ValidateClient(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	claims, session, err := s.verify(ctx, refreshToken, TokenRefresh)
	if err != nil {
		s.expireOnRefresh(ctx, refreshToken, err)

		return nil, err
	}

	if session.ClientID != c.ID {
		return nil, serrors.NewInvalidGrant("refresh token was issued to another client")
	}

	pair, err := s.issue(ctx, session, claims.ID)
	if err != nil {
		return nil, err
	}

	if err := s.denylist.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		// Rotation already superseded the token on the session.
		log.Error().Err(err).Str("session_id", session.ID).Msg("Failed to denylist rotated refresh token")
	}

	s.metrics.TokenPairRefreshed()
	s.audit.Record(ctx, audit.Event{
		Action:   "token.refresh",
		Subject:  session.Subject,
		ClientID: session.ClientID,
		Target:   session.ID,
		Success:  true,
	})

	return pair, nil
}

// expireOnRefresh deactivates the session of a correctly signed refresh token that has
// expired, but only when that token is still the session's current one or the session's
// own refresh expiry has passed. A rotated-out token never ends its successor's session.
func (s *TokenService) expireOnRefresh(ctx context.Context, refreshToken string, verifyErr error) {
	if !errors.Is(verifyErr, jwt.ErrTokenExpired) {
		return
	}

	claims, err := s.claimsIgnoringExpiry(refreshToken, TokenRefresh)
	if err != nil {
		return
	}

	session, err := s.sessions.GetSessionByID(ctx, claims.SessionID)
	if err != nil || !session.Active {
		return
	}

	current := claims.ID == session.RefreshTokenID
	lapsed := !session.RefreshExpiresAt.IsZero() && session.RefreshExpiresAt.Before(s.now())

	if !current && !lapsed {
		log.Debug().Str("session_id", session.ID).Msg("Expired refresh token was already rotated")

		return
	}

	if _, err := s.sessions.DeactivateSession(ctx, session.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		log.Error().Err(err).Str("session_id", session.ID).Msg("Failed to deactivate expired session")

		return
	}

	log.Info().Str("session_id", session.ID).Msg("Session expired on refresh")
}

// claimsIgnoringExpiry validates signature, issuer and type of token and tolerates
// only an expired exp.
func (s *TokenService) claimsIgnoringExpiry(token string, kind TokenKind) (*TokenClaims, error) {
	claims := &TokenClaims{}

	err := s.signer.Parse(token, string(kind), s.cfg.Issuer, claims,
		jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil && !onlyExpired(err) {
		return nil, err
	}

	if claims.Type != kind || claims.SessionID == "" {
		return nil, ErrTokenType
	}

	return claims, nil
}

// onlyExpired reports whether err is a claims failure caused by exp alone.
func onlyExpired(err error) bool {
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return false
	}

	for _, other := range []error{
		jwt.ErrTokenSignatureInvalid,
		jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenUsedBeforeIssued,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenInvalidAudience,
		jwt.ErrTokenRequiredClaimMissing,
	} {
		if errors.Is(err, other) {
			return false
		}
	}

	return true
}

// Invalidate ends a session given its id or one of its access tokens. Expired access
// tokens are accepted. Invalidating an inactive session succeeds.
func (s *TokenService) Invalidate(ctx context.Context, sessionIDOrAccessToken string) error {
	ref := strings.TrimSpace(sessionIDOrAccessToken)
	if ref == "" {
		return serrors.NewValidation("session id or access token is required")
	}

	sessionID := ref
	if strings.Count(ref, ".") == 2 {
		claims, err := s.claimsIgnoringExpiry(ref, TokenAccess)
		if err != nil {
			return serrors.NewTokenInvalid(err)
		}

		sessionID = claims.SessionID
	}

	session, err := s.sessions.GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return serrors.NewNotFound("session not found")
		}

		return serrors.NewDatabase("load session", err)
	}

	wasActive, err := s.sessions.DeactivateSession(ctx, session.ID)
	if err != nil {
		return serrors.NewDatabase("deactivate session", err)
	}

	if session.RefreshTokenID != "" && session.RefreshExpiresAt.After(s.now()) {
		if err := s.denylist.Add(ctx, session.RefreshTokenID, session.RefreshExpiresAt); err != nil {
			log.Error().Err(err).Str("session_id", session.ID).Msg("Failed to denylist refresh token")
		}
	}

	if wasActive {
		s.metrics.SessionInvalidated()
		s.audit.Record(ctx, audit.Event{
			Action:   "session.invalidate",
			Subject:  session.Subject,
			ClientID: session.ClientID,
			Target:   session.ID,
			Success:  true,
		})

		log.Info().Str("session_id", session.ID).Msg("Session invalidated")
	}

	return nil
}

// Introspect describes a currently valid access token.
func (s *TokenService) Introspect(ctx context.Context, accessToken string) (*Introspection, error) {
	claims, session, err := s.verify(ctx, accessToken, TokenAccess)
	if err != nil {
		return nil, err
	}

	return &Introspection{
		Subject:   session.Subject,
		ClientID:  session.ClientID,
		SessionID: session.ID,
		ExpiresAt: claims.ExpiresAt.Time,
		IssuedAt:  claims.IssuedAt.Time,
		Claims:    session.Claims,
	}, nil
}
