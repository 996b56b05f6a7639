package sqlite_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CoachCoe/polkadot-sso/domain"
	"github.com/CoachCoe/polkadot-sso/internal/storetest"
	"github.com/CoachCoe/polkadot-sso/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "sso.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestOpen_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "sso.db")

	store, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sso.db")

	store, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = sqlite.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Store {
		return newTestStore(t)
	})
}
