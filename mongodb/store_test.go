package mongodb_test

import (
	"context"
	"testing"

	"github.com/CoachCoe/polkadot-sso/domain"
	"github.com/CoachCoe/polkadot-sso/internal/storetest"
	"github.com/CoachCoe/polkadot-sso/mongodb"
	"github.com/CoachCoe/polkadot-sso/mongodb/testutil"
	"github.com/stretchr/testify/require"
)

func TestMongoStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Store {
		_, db := testutil.SetupTestMongoDB(t, "test_polkadot_sso")

		store, err := mongodb.NewStore(context.Background(), nil, db)
		require.NoError(t, err)

		return store
	})
}
