package auth_test

import (
	"crypto/rand"
	"testing"

	"github.com/CoachCoe/polkadot-sso/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	hasher := auth.NewBcryptPasswordHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("client-secret")
	require.NoError(t, err)
	require.NoError(t, hasher.Verify(hash, "client-secret"))
	assert.ErrorIs(t, hasher.Verify(hash, "wrong"), bcrypt.ErrMismatchedHashAndPassword)

	t.Run("TestTooLongSecret", func(t *testing.T) {
		tooLong := make([]byte, 73)
		_, _ = rand.Read(tooLong)

		_, err := hasher.Hash(string(tooLong))
		assert.Error(t, err)
	})
}

func TestDefaultCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, auth.NewBcryptPasswordHasher(0).Cost)
}
