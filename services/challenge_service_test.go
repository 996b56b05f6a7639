package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/CoachCoe/polkadot-sso/domain"
	serrors "github.com/CoachCoe/polkadot-sso/errors"
	"github.com/CoachCoe/polkadot-sso/internal/crypto"
	"github.com/CoachCoe/polkadot-sso/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeService_CreateWallet(t *testing.T) {
	h := newHarness(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.setNow(now)

	ch, err := h.challenges.Create(context.Background(), CreateChallengeRequest{ClientID: demoClientID})
	require.NoError(t, err)

	assert.Equal(t, domain.ProviderWallet, ch.Provider)
	assert.Equal(t, demoClientID, ch.ClientID)
	assert.Equal(t, domain.CodeChallengeMethodS256, ch.CodeChallengeMethod)
	assert.Equal(t, crypto.S256Challenge(ch.CodeVerifier), ch.CodeChallenge)
	assert.Len(t, ch.Nonce, 64)
	assert.NotEmpty(t, ch.State)
	assert.Equal(t, now.Add(DefaultChallengeTTL), ch.ExpiresAt)

	assert.True(t, strings.HasPrefix(ch.Message, "app.example.com wants you to sign in with your Polkadot account:\n{address}\n"))
	assert.Contains(t, ch.Message, "Nonce: "+ch.Nonce)
	assert.Contains(t, ch.Message, "Request ID: "+ch.ID)
	assert.Contains(t, ch.Message, "Expiration Time: 2026-03-01T12:05:00Z")
	assert.Contains(t, ch.Message, "- "+demoRedirect)

	stored, err := h.challenges.Get(context.Background(), ch.State)
	require.NoError(t, err)
	assert.Equal(t, ch.ID, stored.ID)
	assert.False(t, stored.Used)
}

func TestChallengeService_CreateWithSubjectHint(t *testing.T) {
	h := newHarness(t)
	w := newTestWallet(t)

	ch, err := h.challenges.Create(context.Background(), CreateChallengeRequest{ClientID: demoClientID, SubjectHint: w.address})
	require.NoError(t, err)
	assert.Contains(t, ch.Message, "\n"+w.address+"\n")
	assert.Equal(t, ch.Message, wallet.BindAddress(ch.Message, "someone-else"))

	_, err = h.challenges.Create(context.Background(), CreateChallengeRequest{ClientID: demoClientID, SubjectHint: "not-an-address"})
	assert.True(t, serrors.IsKind(err, serrors.KindValidation))
}

func TestChallengeService_CreateRejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.challenges.Create(ctx, CreateChallengeRequest{ClientID: "nobody"})
	assert.True(t, serrors.IsKind(err, serrors.KindNotFound))

	_, err = h.challenges.Create(ctx, CreateChallengeRequest{ClientID: "disabled"})
	assert.True(t, serrors.IsKind(err, serrors.KindValidation))

	_, err = h.challenges.Create(ctx, CreateChallengeRequest{ClientID: ""})
	assert.True(t, serrors.IsKind(err, serrors.KindValidation))

	_, err = h.challenges.Create(ctx, CreateChallengeRequest{ClientID: demoClientID, Provider: "carrier-pigeon"})
	assert.True(t, serrors.IsKind(err, serrors.KindValidation))

	_, err = h.challenges.Create(ctx, CreateChallengeRequest{ClientID: demoClientID, Provider: domain.ProviderOAuth2, ProviderName: "google"})
	assert.True(t, serrors.IsKind(err, serrors.KindServiceUnavailable))
}

func TestChallengeService_TelegramDisabled(t *testing.T) {
	h := newHarness(t)
	h.challenges.cfg.TelegramEnabled = false

	_, err := h.challenges.Create(context.Background(), CreateChallengeRequest{ClientID: demoClientID, Provider: domain.ProviderTelegram})
	assert.True(t, serrors.IsKind(err, serrors.KindServiceUnavailable))
}

func TestChallengeService_ProviderTTL(t *testing.T) {
	h := newHarness(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.setNow(now)
	h.challenges.cfg.ProviderTTL = map[string]time.Duration{"telegram": time.Minute}

	ch, err := h.challenges.Create(context.Background(), CreateChallengeRequest{ClientID: demoClientID, Provider: domain.ProviderTelegram})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), ch.ExpiresAt)
	assert.Empty(t, ch.Message)
}

func TestChallengeService_GetAndCleanup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Now().UTC()
	h.setNow(now)

	_, err := h.challenges.Get(ctx, "missing")
	assert.True(t, serrors.IsKind(err, serrors.KindNotFound))

	expired, err := h.challenges.Create(ctx, CreateChallengeRequest{ClientID: demoClientID})
	require.NoError(t, err)

	used, err := h.challenges.Create(ctx, CreateChallengeRequest{ClientID: demoClientID})
	require.NoError(t, err)

	ok, err := h.challenges.Claim(ctx, used.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.challenges.Claim(ctx, used.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	h.setNow(now.Add(10 * time.Minute))

	fresh, err := h.challenges.Create(ctx, CreateChallengeRequest{ClientID: demoClientID})
	require.NoError(t, err)

	n, err := h.challenges.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = h.challenges.Get(ctx, expired.ID)
	assert.True(t, serrors.IsKind(err, serrors.KindNotFound))

	_, err = h.challenges.Get(ctx, used.ID)
	assert.NoError(t, err)

	_, err = h.challenges.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}
