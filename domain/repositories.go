package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ChallengeRepository persists login challenges.
//
// ClaimChallenge must be a single conditional mutation (used: false -> true) and report
// whether this call performed the transition.
type ChallengeRepository interface {
	CreateChallenge(ctx context.Context, challenge *Challenge) error
	GetChallenge(ctx context.Context, id string) (*Challenge, error)
	GetChallengeByState(ctx context.Context, state string) (*Challenge, error)
	ClaimChallenge(ctx context.Context, id string) (bool, error)
	// DeleteExpiredChallenges removes rows with expires_at < before AND used = false.
	DeleteExpiredChallenges(ctx context.Context, before time.Time) (int64, error)
}

// AuthorizationCodeRepository persists hashed authorization codes.
type AuthorizationCodeRepository interface {
	SaveAuthCode(ctx context.Context, code *AuthorizationCode) error
	GetAuthCode(ctx context.Context, codeHash string) (*AuthorizationCode, error)
	ClaimAuthCode(ctx context.Context, codeHash string) (bool, error)
	DeleteExpiredAuthCodes(ctx context.Context, before time.Time) (int64, error)
}

// SessionRepository persists sessions.
type SessionRepository interface {
	StoreSession(ctx context.Context, session *Session) error
	GetSessionByID(ctx context.Context, id string) (*Session, error)
	// UpdateSessionTokens returns ErrNotFound when the session is missing, inactive, or
	// its refresh token id differs from tokens.PreviousRefreshTokenID.
	UpdateSessionTokens(ctx context.Context, id string, tokens SessionTokens) error
	TouchSession(ctx context.Context, id string, at time.Time) error
	// DeactivateSession sets active=false; it reports whether the session was active before.
	DeactivateSession(ctx context.Context, id string) (bool, error)
	// ExpireSessions deactivates active sessions whose refresh expiry is before the given instant.
	ExpireSessions(ctx context.Context, before time.Time) (int64, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]*Session, error)
}

// Store bundles every repository a storage engine provides.
type Store interface {
	ChallengeRepository
	AuthorizationCodeRepository
	SessionRepository
	Close() error
}
