package services

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CoachCoe/polkadot-sso/domain"
	serrors "github.com/CoachCoe/polkadot-sso/errors"
	"github.com/CoachCoe/polkadot-sso/internal/crypto"
	"github.com/CoachCoe/polkadot-sso/internal/telegram"
	"github.com/CoachCoe/polkadot-sso/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertGenericAuthError(t *testing.T, err error) {
	t.Helper()

	require.Error(t, err)

	e, ok := serrors.As(err)
	require.True(t, ok, "expected *serrors.Error, got %T", err)
	assert.Equal(t, serrors.KindAuthentication, e.Kind)
	assert.Equal(t, serrors.GenericAuthMessage, e.Message)
}

func TestWalletLogin_DemoClientScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	w := newTestWallet(t)

	res := h.walletLogin(t, w)
	assert.Equal(t, w.subject(t), res.Identity.Subject)
	assert.Equal(t, demoClientID, res.Session.ClientID)
	assert.True(t, res.Session.Active)
	assert.Len(t, res.Session.Fingerprint, 64)

	u, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", u.Host)
	assert.Equal(t, "/callback", u.Path)

	code := u.Query().Get("code")
	require.NotEmpty(t, code)
	assert.NotEmpty(t, u.Query().Get("state"))

	req := ExchangeRequest{Code: code, ClientID: demoClientID, ClientSecret: demoClientSecret, RedirectURI: demoRedirect}

	pair, err := h.tokens.Exchange(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(900), pair.ExpiresIn)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	_, err = h.tokens.Exchange(ctx, req)
	assert.True(t, serrors.IsKind(err, serrors.KindInvalidGrant))
}

func TestWalletVerify_ConcurrentClaimsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	w := newTestWallet(t)

	ch, err := h.challenges.Create(ctx, CreateChallengeRequest{ClientID: demoClientID, SubjectHint: w.address})
	require.NoError(t, err)

	proof := WalletProof{
		Address:      w.address,
		Signature:    w.sign(t, ch.Message),
		CodeVerifier: ch.CodeVerifier,
		State:        ch.State,
	}

	const workers = 16

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		authFails atomic.Int32
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := h.engine.Verify(ctx, ch.ID, proof)
			if err == nil {
				successes.Add(1)
			} else if serrors.IsKind(err, serrors.KindAuthentication) {
				authFails.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), authFails.Load())
}

func TestWalletVerify_ExpiredChallenge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	w := newTestWallet(t)
	now := time.Now().UTC()
	h.setNow(now)

	ch, err := h.challenges.Create(ctx, CreateChallengeRequest{ClientID: demoClientID, SubjectHint: w.address})
	require.NoError(t, err)

	h.setNow(now.Add(DefaultChallengeTTL + time.Second))

	_, err = h.engine.Verify(ctx, ch.ID, WalletProof{
		Address:      w.address,
		Signature:    w.sign(t, ch.Message),
		CodeVerifier: ch.CodeVerifier,
		State:        ch.State,
	})
	assertGenericAuthError(t, err)
	assert.ErrorIs(t, err, ErrChallengeExpired)

	stored, err := h.challenges.Get(ctx, ch.ID)
	require.NoError(t, err)
	assert.False(t, stored.Used)
}

func TestWalletVerify_LegacyHexChallenge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	w := newTestWallet(t)

	for name, encode := range map[string]func(string) string{
		"base64url": crypto.S256Challenge,
		"hex":       crypto.LegacyHexChallenge,
	} {
		t.Run(name, func(t *testing.T) {
			ch, err := h.challenges.Create(ctx, CreateChallengeRequest{ClientID: demoClientID, SubjectHint: w.address})
			require.NoError(t, err)

			legacy := *ch
			legacy.ID = ch.ID + "-" + name
			legacy.State = ch.State + "-" + name
			legacy.CodeChallenge = encode(ch.CodeVerifier)
			require.NoError(t, h.store.CreateChallenge(ctx, &legacy))

			identity, err := h.engine.Verify(ctx, legacy.ID, WalletProof{
				Address:      w.address,
				Signature:    w.sign(t, ch.Message),
				CodeVerifier: ch.CodeVerifier,
				State:        legacy.State,
			})
			require.NoError(t, err)
			assert.Equal(t, w.subject(t), identity.Subject)
			assert.Equal(t, legacy.ID, identity.ChallengeID)
		})
	}
}

func TestWalletVerify_SubjectIgnoresNetworkPrefix(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	w := newTestWallet(t)

	for _, network := range []uint16{0, 2, wallet.GenericNetwork} {
		address := w.addressOn(t, network)

		// The hint is the Polkadot encoding; the wallet answers with another network's.
		ch, err := h.challenges.Create(ctx, CreateChallengeRequest{ClientID: demoClientID, SubjectHint: w.address})
		require.NoError(t, err)

		identity, err := h.engine.Verify(ctx, ch.ID, WalletProof{
			Address:      address,
			Signature:    w.sign(t, ch.Message),
			CodeVerifier: ch.CodeVerifier,
			State:        ch.State,
		})
		require.NoError(t, err, "network %d", network)
		assert.Equal(t, w.subject(t), identity.Subject)
		assert.Equal(t, address, identity.Claims["address"])
	}
}

func TestWalletVerify_Rejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	w := newTestWallet(t)
	other := newTestWallet(t)

	tests := []struct {
		name    string
		mutate  func(ch *domain.Challenge, p *WalletProof)
		wantErr error
	}{
		{
			name:    "wrong verifier",
			mutate:  func(_ *domain.Challenge, p *WalletProof) { p.CodeVerifier = "not-the-verifier" },
			wantErr: ErrVerifierMismatch,
		},
		{
			name:    "wrong state",
			mutate:  func(_ *domain.Challenge, p *WalletProof) { p.State = "forged" },
			wantErr: ErrStateMismatch,
		},
		{
			name: "address differs from hint",
			mutate: func(ch *domain.Challenge, p *WalletProof) {
				p.Address = other.address
				p.Signature = other.sign(t, ch.Message)
			},
			wantErr: ErrSubjectMismatch,
		},
		{
			name:    "signature by other key",
			mutate:  func(ch *domain.Challenge, p *WalletProof) { p.Signature = other.sign(t, ch.Message) },
			wantErr: wallet.ErrInvalidSignature,
		},
		{
			name:    "garbage signature",
			mutate:  func(_ *domain.Challenge, p *WalletProof) { p.Signature = "0xzz" },
			wantErr: wallet.ErrSignatureFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := h.challenges.Create(ctx, CreateChallengeRequest{ClientID: demoClientID, SubjectHint: w.address})
			require.NoError(t, err)

			proof := WalletProof{
				Address:      w.address,
				Signature:    w.sign(t, ch.Message),
				CodeVerifier: ch.CodeVerifier,
				State:        ch.State,
			}
			tt.mutate(ch, &proof)

			_, err = h.engine.Verify(ctx, ch.ID, proof)
			assertGenericAuthError(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			stored, err := h.challenges.Get(ctx, ch.ID)
			require.NoError(t, err)
			assert.False(t, stored.Used, "failed proof must not consume the challenge")
		})
	}
}

func TestVerify_UnknownChallengeAndProviderMismatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Verify(ctx, "does-not-exist", WalletProof{})
	assertGenericAuthError(t, err)

	ch, err := h.challenges.Create(ctx, CreateChallengeRequest{ClientID: demoClientID})
	require.NoError(t, err)

	_, err = h.engine.Verify(ctx, ch.ID, TelegramProof{CodeVerifier: ch.CodeVerifier, State: ch.State})
	assertGenericAuthError(t, err)
	assert.ErrorIs(t, err, ErrProviderMismatch)
}

func telegramAssertion(authDate time.Time) telegram.Assertion {
	a := telegram.Assertion{
		ID:        424242,
		FirstName: "Ada",
		Username:  "ada",
		AuthDate:  authDate.Unix(),
	}
	a.Hash = telegram.Sign(testBotToken, a.Fields())

	return a
}

func TestTelegramVerify(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	h.setNow(now)

	t.Run("fresh assertion", func(t *testing.T) {
		ch, err := h.challenges.Create(ctx, CreateChallengeRequest{ClientID: demoClientID, Provider: domain.ProviderTelegram})
		require.NoError(t, err)

		identity, err := h.engine.Verify(ctx, ch.State, TelegramProof{
			Assertion:    telegramAssertion(now.Add(-time.Minute)),
			CodeVerifier: ch.CodeVerifier,
			State:        ch.State,
		})
		require.NoError(t, err)
		assert.Equal(t, "telegram:424242", identity.Subject)
		assert.Equal(t, "ada", identity.Claims["username"])
	})

	t.Run("ten minutes old", func(t *testing.T) {
		ch, err := h.challenges.Create(ctx, CreateChallengeRequest{ClientID: demoClientID, Provider: domain.ProviderTelegram})
		require.NoError(t, err)

		_, err = h.engine.Verify(ctx, ch.ID, TelegramProof{
			Assertion:    telegramAssertion(now.Add(-10 * time.Minute)),
			CodeVerifier: ch.CodeVerifier,
			State:        ch.State,
		})
		assertGenericAuthError(t, err)
		assert.ErrorIs(t, err, telegram.ErrAuthExpired)
	})

	t.Run("tampered", func(t *testing.T) {
		ch, err := h.challenges.Create(ctx, CreateChallengeRequest{ClientID: demoClientID, Provider: domain.ProviderTelegram})
		require.NoError(t, err)

		a := telegramAssertion(now)
		a.ID = 1

		_, err = h.engine.Verify(ctx, ch.ID, TelegramProof{Assertion: a, CodeVerifier: ch.CodeVerifier, State: ch.State})
		assertGenericAuthError(t, err)
		assert.ErrorIs(t, err, telegram.ErrHashMismatch)
	})

	t.Run("wrong verifier", func(t *testing.T) {
		ch, err := h.challenges.Create(ctx, CreateChallengeRequest{ClientID: demoClientID, Provider: domain.ProviderTelegram})
		require.NoError(t, err)

		_, err = h.engine.Verify(ctx, ch.ID, TelegramProof{Assertion: telegramAssertion(now), CodeVerifier: "x", State: ch.State})
		assertGenericAuthError(t, err)
		assert.ErrorIs(t, err, ErrVerifierMismatch)
	})
}
