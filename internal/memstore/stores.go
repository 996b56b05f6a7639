// Package memstore keeps challenges, codes and sessions in process memory.
// It backs the "memory" storage driver used in development and tests.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/CoachCoe/polkadot-sso/domain"
)

var ErrConflict = errors.New("record already exists")

// Store implements domain.Store. All maps are guarded by one mutex, so every
// claim is a compare-and-set under that lock.
type Store struct {
	mu         sync.RWMutex
	challenges map[string]domain.Challenge
	byState    map[string]string
	codes      map[string]domain.AuthorizationCode
	sessions   map[string]domain.Session
}

func New() *Store {
	return &Store{
		challenges: make(map[string]domain.Challenge),
		byState:    make(map[string]string),
		codes:      make(map[string]domain.AuthorizationCode),
		sessions:   make(map[string]domain.Session),
	}
}

func (s *Store) CreateChallenge(_ context.Context, c *domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.challenges[c.ID]; exists {
		return ErrConflict
	}

	if _, exists := s.byState[c.State]; exists {
		return ErrConflict
	}

	s.challenges[c.ID] = *c
	s.byState[c.State] = c.ID

	return nil
}

func (s *Store) GetChallenge(_ context.Context, id string) (*domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.challenges[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return &c, nil
}

func (s *Store) GetChallengeByState(ctx context.Context, state string) (*domain.Challenge, error) {
	s.mu.RLock()
	id, ok := s.byState[state]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrNotFound
	}

	return s.GetChallenge(ctx, id)
}

func (s *Store) ClaimChallenge(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok || c.Used {
		return false, nil
	}

	c.Used = true
	s.challenges[id] = c

	return true, nil
}

func (s *Store) DeleteExpiredChallenges(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64

	for id, c := range s.challenges {
		if !c.Used && c.ExpiresAt.Before(before) {
			delete(s.challenges, id)
			delete(s.byState, c.State)
			n++
		}
	}

	return n, nil
}

func (s *Store) SaveAuthCode(_ context.Context, code *domain.AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.codes[code.CodeHash]; exists {
		return ErrConflict
	}

	s.codes[code.CodeHash] = *code

	return nil
}

func (s *Store) GetAuthCode(_ context.Context, codeHash string) (*domain.AuthorizationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code, ok := s.codes[codeHash]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return &code, nil
}

func (s *Store) ClaimAuthCode(_ context.Context, codeHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.codes[codeHash]
	if !ok || code.Used {
		return false, nil
	}

	code.Used = true
	s.codes[codeHash] = code

	return true, nil
}

func (s *Store) DeleteExpiredAuthCodes(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64

	for hash, code := range s.codes {
		if !code.Used && code.ExpiresAt.Before(before) {
			delete(s.codes, hash)
			n++
		}
	}

	return n, nil
}

func (s *Store) StoreSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return ErrConflict
	}

	s.sessions[session.ID] = copySession(*session)

	return nil
}

func (s *Store) GetSessionByID(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	session = copySession(session)

	return &session, nil
}

func (s *Store) UpdateSessionTokens(_ context.Context, id string, tokens domain.SessionTokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || !session.Active {
		return domain.ErrNotFound
	}

	if tokens.PreviousRefreshTokenID != "" && session.RefreshTokenID != tokens.PreviousRefreshTokenID {
		return domain.ErrNotFound
	}

	session.AccessTokenID = tokens.AccessTokenID
	session.RefreshTokenID = tokens.RefreshTokenID
	session.AccessExpiresAt = tokens.AccessExpiresAt
	session.RefreshExpiresAt = tokens.RefreshExpiresAt
	s.sessions[id] = session

	return nil
}

func (s *Store) TouchSession(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if ok && session.Active {
		session.LastUsedAt = at
		s.sessions[id] = session
	}

	return nil
}

func (s *Store) DeactivateSession(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || !session.Active {
		return false, nil
	}

	session.Active = false
	s.sessions[id] = session

	return true, nil
}

func (s *Store) ExpireSessions(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64

	for id, session := range s.sessions {
		if session.Active && !session.RefreshExpiresAt.IsZero() && session.RefreshExpiresAt.Before(before) {
			session.Active = false
			s.sessions[id] = session
			n++
		}
	}

	return n, nil
}

func (s *Store) ListSessions(_ context.Context, filter domain.SessionFilter) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Session

	for _, session := range s.sessions {
		if filter.Subject != "" && session.Subject != filter.Subject {
			continue
		}

		if filter.ClientID != "" && session.ClientID != filter.ClientID {
			continue
		}

		if filter.ActiveOnly && !session.Active {
			continue
		}

		cp := copySession(session)
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	return out, nil
}

func (s *Store) Close() error { return nil }

func copySession(session domain.Session) domain.Session {
	if session.Claims != nil {
		claims := make(map[string]string, len(session.Claims))
		for k, v := range session.Claims {
			claims[k] = v
		}

		session.Claims = claims
	}

	return session
}

var _ domain.Store = (*Store)(nil)
