package services

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/CoachCoe/polkadot-sso/cache"
	"github.com/CoachCoe/polkadot-sso/client"
	"github.com/CoachCoe/polkadot-sso/internal/auth"
	"github.com/CoachCoe/polkadot-sso/internal/federation"
	"github.com/CoachCoe/polkadot-sso/internal/memstore"
	"github.com/CoachCoe/polkadot-sso/internal/telegram"
	"github.com/CoachCoe/polkadot-sso/internal/wallet"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testIssuer       = "https://sso.example.com"
	demoClientID     = "demo-client"
	demoClientSecret = "demo-secret"
	demoRedirect     = "https://app.example.com/callback"
	publicClientID   = "public-app"
	testBotToken     = "123456:TEST-BOT-TOKEN"
)

type harness struct {
	store      *memstore.Store
	clients    *client.ClientService
	challenges *ChallengeService
	engine     *VerificationEngine
	issuer     *SessionIssuer
	tokens     *TokenService
	login      *LoginService
	signer     *TokenSigner
	denylist   *cache.MemoryDenylist
	tgVerifier *telegram.Validator
}

func newHarness(t *testing.T, providers ...federation.OAuth2Provider) *harness {
	t.Helper()

	hasher := auth.NewBcryptPasswordHasher(bcrypt.MinCost)
	secretHash, err := hasher.Hash(demoClientSecret)
	require.NoError(t, err)

	clientStore, err := client.NewMemoryClientStore(
		client.Client{ID: demoClientID, Name: "Demo", SecretHash: secretHash, RedirectURL: demoRedirect, Active: true},
		client.Client{ID: publicClientID, Name: "Public", RedirectURL: "https://public.example.com/cb", Active: true},
		client.Client{ID: "disabled", Name: "Disabled", RedirectURL: "https://disabled.example.com/cb"},
	)
	require.NoError(t, err)

	store := memstore.New()
	clients := client.NewClientService(clientStore, hasher)
	registry := federation.NewRegistry(providers...)

	challenges := NewChallengeService(store, clients, registry, ChallengeConfig{
		WalletDomain:    "app.example.com",
		WalletURI:       "https://app.example.com/login",
		WalletStatement: "Sign in to Demo",
		WalletChainID:   "polkadot",
		TelegramEnabled: true,
	}, nil)

	tg := telegram.NewValidator(testBotToken, 0)

	engine := NewVerificationEngine(challenges, nil, nil,
		NewWalletVerifier(),
		NewOAuthVerifier(registry, false),
		NewTelegramVerifier(tg),
	)

	issuer := NewSessionIssuer(store, store, 0, nil)

	signer := NewTokenSigner()
	signer.AddKeySigner(string(TokenAccess), "access-secret")
	signer.AddKeySigner(string(TokenRefresh), "refresh-secret")

	denylist := cache.NewMemoryDenylist()
	t.Cleanup(denylist.Stop)

	tokens := NewTokenService(store, store, clients, denylist, signer, TokenConfig{Issuer: testIssuer}, nil, nil)

	return &harness{
		store:      store,
		clients:    clients,
		challenges: challenges,
		engine:     engine,
		issuer:     issuer,
		tokens:     tokens,
		login:      NewLoginService(engine, issuer, clients),
		signer:     signer,
		denylist:   denylist,
		tgVerifier: tg,
	}
}

// setNow moves every clock of the harness to now.
func (h *harness) setNow(now time.Time) {
	clock := func() time.Time { return now }

	h.challenges.now = clock
	h.engine.now = clock
	h.issuer.now = clock
	h.tokens.now = clock
	h.tgVerifier.WithClock(clock)
}

type testWallet struct {
	secret  *schnorrkel.SecretKey
	pub     [32]byte
	address string
}

func newTestWallet(t *testing.T) *testWallet {
	t.Helper()

	sk, pk, err := schnorrkel.GenerateKeypair()
	require.NoError(t, err)

	pub := pk.Encode()
	address, err := wallet.EncodeAddress(0, pub[:])
	require.NoError(t, err)

	return &testWallet{secret: sk, pub: pub, address: address}
}

// addressOn encodes the wallet's key under another network prefix.
func (w *testWallet) addressOn(t *testing.T, network uint16) string {
	t.Helper()

	address, err := wallet.EncodeAddress(network, w.pub[:])
	require.NoError(t, err)

	return address
}

// subject is the session subject every encoding of the wallet's key maps to.
func (w *testWallet) subject(t *testing.T) string {
	t.Helper()

	return "wallet:" + w.addressOn(t, wallet.GenericNetwork)
}

func (w *testWallet) sign(t *testing.T, message string) string {
	t.Helper()

	sig, err := w.secret.Sign(schnorrkel.NewSigningContext(wallet.SigningContext, []byte(message)))
	require.NoError(t, err)

	raw := sig.Encode()

	return "0x" + hex.EncodeToString(raw[:])
}

// walletLogin creates a wallet challenge for demo-client, signs it and completes the login.
func (h *harness) walletLogin(t *testing.T, w *testWallet) *LoginResult {
	t.Helper()

	ctx := context.Background()

	ch, err := h.challenges.Create(ctx, CreateChallengeRequest{ClientID: demoClientID})
	require.NoError(t, err)

	proof := WalletProof{
		Address:      w.address,
		Signature:    w.sign(t, wallet.BindAddress(ch.Message, w.address)),
		CodeVerifier: ch.CodeVerifier,
		State:        ch.State,
	}

	res, err := h.login.Complete(ctx, ch.ID, proof)
	require.NoError(t, err)

	return res
}
