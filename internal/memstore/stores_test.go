package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/CoachCoe/polkadot-sso/domain"
	"github.com/CoachCoe/polkadot-sso/internal/memstore"
	"github.com/CoachCoe/polkadot-sso/internal/storetest"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) domain.Store { return memstore.New() })
}

func TestCreateChallengeRejectsDuplicateState(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	first := storetest.NewChallenge(time.Minute)
	require.NoError(t, store.CreateChallenge(ctx, first))

	second := storetest.NewChallenge(time.Minute)
	second.State = first.State
	require.ErrorIs(t, store.CreateChallenge(ctx, second), memstore.ErrConflict)
}
