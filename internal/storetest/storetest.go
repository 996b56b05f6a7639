// Package storetest holds the conformance suite every domain.Store implementation runs.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CoachCoe/polkadot-sso/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) domain.Store

// Run executes the full suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("ChallengeRoundTrip", func(t *testing.T) { testChallengeRoundTrip(t, newStore(t)) })
	t.Run("ChallengeClaimOnce", func(t *testing.T) { testChallengeClaimOnce(t, newStore(t)) })
	t.Run("ChallengeConcurrentClaim", func(t *testing.T) { testChallengeConcurrentClaim(t, newStore(t)) })
	t.Run("ChallengeSweep", func(t *testing.T) { testChallengeSweep(t, newStore(t)) })
	t.Run("AuthCodeClaimOnce", func(t *testing.T) { testAuthCodeClaimOnce(t, newStore(t)) })
	t.Run("AuthCodeSweep", func(t *testing.T) { testAuthCodeSweep(t, newStore(t)) })
	t.Run("SessionLifecycle", func(t *testing.T) { testSessionLifecycle(t, newStore(t)) })
	t.Run("SessionRotateOnce", func(t *testing.T) { testSessionRotateOnce(t, newStore(t)) })
	t.Run("SessionExpire", func(t *testing.T) { testSessionExpire(t, newStore(t)) })
	t.Run("SessionList", func(t *testing.T) { testSessionList(t, newStore(t)) })
}

// NewChallenge returns a populated, unexpired wallet challenge.
func NewChallenge(ttl time.Duration) *domain.Challenge {
	now := time.Now().UTC().Truncate(time.Millisecond)

	return &domain.Challenge{
		ID:                  uuid.NewString(),
		Provider:            domain.ProviderWallet,
		ClientID:            "demo-client",
		CodeVerifier:        "verifier-" + uuid.NewString(),
		CodeChallenge:       "challenge-" + uuid.NewString(),
		CodeChallengeMethod: domain.CodeChallengeMethodS256,
		State:               uuid.NewString(),
		Nonce:               uuid.NewString(),
		Message:             "sign me",
		CreatedAt:           now,
		ExpiresAt:           now.Add(ttl),
	}
}

func newSession(subject, clientID string) *domain.Session {
	now := time.Now().UTC().Truncate(time.Millisecond)

	return &domain.Session{
		ID:          uuid.NewString(),
		Subject:     subject,
		ClientID:    clientID,
		Fingerprint: "fp",
		Claims:      map[string]string{"provider": "wallet"},
		CreatedAt:   now,
		LastUsedAt:  now,
		Active:      true,
	}
}

func testChallengeRoundTrip(t *testing.T, store domain.Store) {
	ctx := context.Background()
	c := NewChallenge(5 * time.Minute)

	require.NoError(t, store.CreateChallenge(ctx, c))

	got, err := store.GetChallenge(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, c.Provider, got.Provider)
	assert.Equal(t, c.CodeVerifier, got.CodeVerifier)
	assert.Equal(t, c.CodeChallenge, got.CodeChallenge)
	assert.Equal(t, c.State, got.State)
	assert.Equal(t, c.Message, got.Message)
	assert.True(t, c.ExpiresAt.Equal(got.ExpiresAt), "expires_at %s != %s", c.ExpiresAt, got.ExpiresAt)
	assert.False(t, got.Used)

	byState, err := store.GetChallengeByState(ctx, c.State)
	require.NoError(t, err)
	assert.Equal(t, c.ID, byState.ID)

	_, err = store.GetChallenge(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.GetChallengeByState(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func testChallengeClaimOnce(t *testing.T, store domain.Store) {
	ctx := context.Background()
	c := NewChallenge(5 * time.Minute)
	require.NoError(t, store.CreateChallenge(ctx, c))

	ok, err := store.ClaimChallenge(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ClaimChallenge(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.ClaimChallenge(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.GetChallenge(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Used)
}

func testChallengeConcurrentClaim(t *testing.T, store domain.Store) {
	ctx := context.Background()
	c := NewChallenge(5 * time.Minute)
	require.NoError(t, store.CreateChallenge(ctx, c))

	const workers = 16

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		start   = make(chan struct{})
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			<-start

			ok, err := store.ClaimChallenge(ctx, c.ID)
			if err == nil && ok {
				winners.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func testChallengeSweep(t *testing.T, store domain.Store) {
	ctx := context.Background()

	expired := NewChallenge(-time.Minute)
	expiredUsed := NewChallenge(-time.Minute)
	live := NewChallenge(time.Hour)

	for _, c := range []*domain.Challenge{expired, expiredUsed, live} {
		require.NoError(t, store.CreateChallenge(ctx, c))
	}

	ok, err := store.ClaimChallenge(ctx, expiredUsed.ID)
	require.NoError(t, err)
	require.True(t, ok)

	n, err := store.DeleteExpiredChallenges(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.GetChallenge(ctx, expired.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.GetChallenge(ctx, expiredUsed.ID)
	require.NoError(t, err)

	_, err = store.GetChallenge(ctx, live.ID)
	require.NoError(t, err)

	n, err = store.DeleteExpiredChallenges(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func newAuthCode(ttl time.Duration) *domain.AuthorizationCode {
	now := time.Now().UTC().Truncate(time.Millisecond)

	return &domain.AuthorizationCode{
		CodeHash:  uuid.NewString(),
		Subject:   "wallet:5Grw",
		ClientID:  "demo-client",
		SessionID: uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func testAuthCodeClaimOnce(t *testing.T, store domain.Store) {
	ctx := context.Background()
	code := newAuthCode(5 * time.Minute)
	require.NoError(t, store.SaveAuthCode(ctx, code))

	got, err := store.GetAuthCode(ctx, code.CodeHash)
	require.NoError(t, err)
	assert.Equal(t, code.Subject, got.Subject)
	assert.Equal(t, code.SessionID, got.SessionID)
	assert.False(t, got.Used)

	var winners atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if ok, err := store.ClaimAuthCode(ctx, code.CodeHash); err == nil && ok {
				winners.Add(1)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())

	_, err = store.GetAuthCode(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func testAuthCodeSweep(t *testing.T, store domain.Store) {
	ctx := context.Background()

	expired := newAuthCode(-time.Minute)
	live := newAuthCode(time.Hour)
	require.NoError(t, store.SaveAuthCode(ctx, expired))
	require.NoError(t, store.SaveAuthCode(ctx, live))

	n, err := store.DeleteExpiredAuthCodes(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.GetAuthCode(ctx, expired.CodeHash)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.GetAuthCode(ctx, live.CodeHash)
	require.NoError(t, err)
}

func testSessionLifecycle(t *testing.T, store domain.Store) {
	ctx := context.Background()
	s := newSession("wallet:5Grw", "demo-client")
	require.NoError(t, store.StoreSession(ctx, s))

	got, err := store.GetSessionByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Subject, got.Subject)
	assert.Equal(t, s.Claims, got.Claims)
	assert.True(t, got.Active)
	assert.Empty(t, got.AccessTokenID)

	tokens := domain.SessionTokens{
		AccessTokenID:    "a1",
		RefreshTokenID:   "r1",
		AccessExpiresAt:  time.Now().Add(15 * time.Minute).UTC().Truncate(time.Millisecond),
		RefreshExpiresAt: time.Now().Add(7 * 24 * time.Hour).UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.UpdateSessionTokens(ctx, s.ID, tokens))

	touchedAt := time.Now().Add(time.Minute).UTC().Truncate(time.Millisecond)
	require.NoError(t, store.TouchSession(ctx, s.ID, touchedAt))

	got, err = store.GetSessionByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "a1", got.AccessTokenID)
	assert.Equal(t, "r1", got.RefreshTokenID)
	assert.True(t, tokens.RefreshExpiresAt.Equal(got.RefreshExpiresAt))
	assert.True(t, touchedAt.Equal(got.LastUsedAt))

	was, err := store.DeactivateSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, was)

	was, err = store.DeactivateSession(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, was)

	got, err = store.GetSessionByID(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	err = store.UpdateSessionTokens(ctx, s.ID, tokens)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.GetSessionByID(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func testSessionRotateOnce(t *testing.T, store domain.Store) {
	ctx := context.Background()
	s := newSession("wallet:5Grw", "demo-client")
	require.NoError(t, store.StoreSession(ctx, s))

	require.NoError(t, store.UpdateSessionTokens(ctx, s.ID, domain.SessionTokens{
		AccessTokenID: "a1", RefreshTokenID: "r1",
		AccessExpiresAt:  time.Now().Add(time.Minute),
		RefreshExpiresAt: time.Now().Add(time.Hour),
	}))

	var winners atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			err := store.UpdateSessionTokens(ctx, s.ID, domain.SessionTokens{
				AccessTokenID:          uuid.NewString(),
				RefreshTokenID:         uuid.NewString(),
				AccessExpiresAt:        time.Now().Add(time.Minute),
				RefreshExpiresAt:       time.Now().Add(time.Hour),
				PreviousRefreshTokenID: "r1",
			})
			if err == nil {
				winners.Add(1)
			}
		}(i)
	}

	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())

	got, err := store.GetSessionByID(ctx, s.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "r1", got.RefreshTokenID)
}

func testSessionExpire(t *testing.T, store domain.Store) {
	ctx := context.Background()

	stale := newSession("telegram:1", "demo-client")
	fresh := newSession("telegram:2", "demo-client")

	require.NoError(t, store.StoreSession(ctx, stale))
	require.NoError(t, store.StoreSession(ctx, fresh))

	require.NoError(t, store.UpdateSessionTokens(ctx, stale.ID, domain.SessionTokens{
		AccessTokenID: "a", RefreshTokenID: "r",
		AccessExpiresAt:  time.Now().Add(-2 * time.Hour),
		RefreshExpiresAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, store.UpdateSessionTokens(ctx, fresh.ID, domain.SessionTokens{
		AccessTokenID: "b", RefreshTokenID: "s",
		AccessExpiresAt:  time.Now().Add(time.Hour),
		RefreshExpiresAt: time.Now().Add(24 * time.Hour),
	}))

	n, err := store.ExpireSessions(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.GetSessionByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	got, err = store.GetSessionByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
}

func testSessionList(t *testing.T, store domain.Store) {
	ctx := context.Background()

	a := newSession("google:1", "app-a")
	b := newSession("google:1", "app-b")
	c := newSession("google:2", "app-a")

	for _, s := range []*domain.Session{a, b, c} {
		require.NoError(t, store.StoreSession(ctx, s))
	}

	_, err := store.DeactivateSession(ctx, b.ID)
	require.NoError(t, err)

	all, err := store.ListSessions(ctx, domain.SessionFilter{Subject: "google:1"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := store.ListSessions(ctx, domain.SessionFilter{Subject: "google:1", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	byClient, err := store.ListSessions(ctx, domain.SessionFilter{ClientID: "app-a"})
	require.NoError(t, err)
	assert.Len(t, byClient, 2)
}
