package telegram_test

import (
	"testing"
	"time"

	"github.com/CoachCoe/polkadot-sso/internal/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const botToken = "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"

func signed(t *testing.T, authDate time.Time) telegram.Assertion {
	t.Helper()

	a := telegram.Assertion{
		ID:        42,
		FirstName: "Ada",
		Username:  "ada",
		AuthDate:  authDate.Unix(),
	}
	a.Hash = telegram.Sign(botToken, a.Fields())

	return a
}

func TestDataCheckString(t *testing.T) {
	dcs := telegram.DataCheckString(map[string]string{
		"username":   "ada",
		"id":         "42",
		"hash":       "ignored",
		"auth_date":  "1700000000",
		"first_name": "Ada",
	})

	assert.Equal(t, "auth_date=1700000000\nfirst_name=Ada\nid=42\nusername=ada", dcs)
}

func TestValidate(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := telegram.NewValidator(botToken, 0).WithClock(func() time.Time { return now })

	t.Run("fresh assertion", func(t *testing.T) {
		require.NoError(t, v.Validate(signed(t, now.Add(-time.Minute))))
	})

	t.Run("ten minutes old", func(t *testing.T) {
		err := v.Validate(signed(t, now.Add(-10*time.Minute)))
		require.ErrorIs(t, err, telegram.ErrAuthExpired)
	})

	t.Run("within future skew", func(t *testing.T) {
		require.NoError(t, v.Validate(signed(t, now.Add(20*time.Second))))
	})

	t.Run("too far in the future", func(t *testing.T) {
		err := v.Validate(signed(t, now.Add(2*time.Minute)))
		require.ErrorIs(t, err, telegram.ErrAuthInFuture)
	})

	t.Run("tampered field", func(t *testing.T) {
		a := signed(t, now)
		a.Username = "mallory"
		require.ErrorIs(t, v.Validate(a), telegram.ErrHashMismatch)
	})

	t.Run("wrong bot token", func(t *testing.T) {
		other := telegram.NewValidator("999:other", 0).WithClock(func() time.Time { return now })
		require.ErrorIs(t, other.Validate(signed(t, now)), telegram.ErrHashMismatch)
	})

	t.Run("missing hash", func(t *testing.T) {
		a := signed(t, now)
		a.Hash = ""
		require.ErrorIs(t, v.Validate(a), telegram.ErrMissingHash)
	})
}

func TestValidateWithoutBotToken(t *testing.T) {
	v := telegram.NewValidator("", 0)
	require.ErrorIs(t, v.Validate(telegram.Assertion{Hash: "x"}), telegram.ErrNotConfigured)
}
