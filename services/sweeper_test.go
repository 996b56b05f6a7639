package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/CoachCoe/polkadot-sso/domain"
	serrors "github.com/CoachCoe/polkadot-sso/errors"
	"github.com/CoachCoe/polkadot-sso/internal/metrics"
	"github.com/CoachCoe/polkadot-sso/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore is a domain.Store whose sweep methods are scripted.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateChallenge(ctx context.Context, c *domain.Challenge) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockStore) GetChallenge(ctx context.Context, id string) (*domain.Challenge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Challenge), args.Error(1)
}

func (m *MockStore) GetChallengeByState(ctx context.Context, state string) (*domain.Challenge, error) {
	args := m.Called(ctx, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Challenge), args.Error(1)
}

func (m *MockStore) ClaimChallenge(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) DeleteExpiredChallenges(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) SaveAuthCode(ctx context.Context, code *domain.AuthorizationCode) error {
	return m.Called(ctx, code).Error(0)
}

func (m *MockStore) GetAuthCode(ctx context.Context, codeHash string) (*domain.AuthorizationCode, error) {
	args := m.Called(ctx, codeHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.AuthorizationCode), args.Error(1)
}

func (m *MockStore) ClaimAuthCode(ctx context.Context, codeHash string) (bool, error) {
	args := m.Called(ctx, codeHash)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) DeleteExpiredAuthCodes(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) StoreSession(ctx context.Context, session *domain.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockStore) GetSessionByID(ctx context.Context, id string) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockStore) UpdateSessionTokens(ctx context.Context, id string, tokens domain.SessionTokens) error {
	return m.Called(ctx, id, tokens).Error(0)
}

func (m *MockStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockStore) DeactivateSession(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) ExpireSessions(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) ListSessions(ctx context.Context, filter domain.SessionFilter) ([]*domain.Session, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*domain.Session), args.Error(1)
}

func (m *MockStore) Close() error {
	return m.Called().Error(0)
}

func newSweepChallenges(store domain.Store) *ChallengeService {
	return NewChallengeService(store, nil, nil, ChallengeConfig{}, nil)
}

func TestSweeper_SweepOnceContinuesAfterFailure(t *testing.T) {
	store := new(MockStore)
	dbErr := errors.New("database is locked")

	store.On("DeleteExpiredChallenges", mock.Anything, mock.AnythingOfType("time.Time")).Return(int64(0), dbErr)
	store.On("DeleteExpiredAuthCodes", mock.Anything, mock.AnythingOfType("time.Time")).Return(int64(2), nil)
	store.On("ExpireSessions", mock.Anything, mock.AnythingOfType("time.Time")).Return(int64(1), nil)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	res, err := NewSweeper(newSweepChallenges(store), store, time.Minute, m).SweepOnce(context.Background())
	require.ErrorIs(t, err, dbErr)
	assert.True(t, serrors.IsKind(err, serrors.KindDatabase))

	assert.Equal(t, SweepResult{AuthCodes: 2, Sessions: 1}, res)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SweepDeleted.WithLabelValues("authorization_codes")))
	store.AssertExpectations(t)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	swept := make(chan struct{}, 1)

	store := new(MockStore)
	store.On("DeleteExpiredChallenges", mock.Anything, mock.Anything).Return(int64(0), nil)
	store.On("DeleteExpiredAuthCodes", mock.Anything, mock.Anything).Return(int64(0), nil)
	store.On("ExpireSessions", mock.Anything, mock.Anything).Return(int64(0), nil).Run(func(mock.Arguments) {
		select {
		case swept <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- NewSweeper(newSweepChallenges(store), store, 10*time.Millisecond, nil).Run(ctx) }()

	select {
	case <-swept:
	case <-time.After(time.Second):
		t.Fatal("sweeper never ran")
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_SQLite(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "sso.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.CreateChallenge(ctx, &domain.Challenge{
		ID: "old", Provider: domain.ProviderWallet, ClientID: demoClientID, State: "s-old",
		CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute),
	}))
	require.NoError(t, store.CreateChallenge(ctx, &domain.Challenge{
		ID: "live", Provider: domain.ProviderWallet, ClientID: demoClientID, State: "s-live",
		CreatedAt: now, ExpiresAt: now.Add(time.Minute),
	}))
	require.NoError(t, store.StoreSession(ctx, &domain.Session{
		ID: "stale", Subject: "wallet:x", ClientID: demoClientID, Active: true,
		CreatedAt: now.Add(-8 * 24 * time.Hour), RefreshExpiresAt: now.Add(-time.Hour),
	}))

	res, err := NewSweeper(newSweepChallenges(store), store, time.Minute, nil).SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Challenges: 1, Sessions: 1}, res)

	_, err = store.GetChallenge(ctx, "live")
	assert.NoError(t, err)

	session, err := store.GetSessionByID(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, session.Active)
}
