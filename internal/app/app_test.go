package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CoachCoe/polkadot-sso/config"
	"github.com/CoachCoe/polkadot-sso/log"
	"github.com/CoachCoe/polkadot-sso/services"
	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clientsYAML = `clients:
  - client_id: demo-client
    client_name: Demo
    redirect_url: https://app.example.com/callback
    allowed_origins: [https://app.example.com]
    active: true
`

func testConfig(t *testing.T) *config.ServerConfig {
	t.Helper()

	dir := t.TempDir()
	clientsFile := filepath.Join(dir, "clients.yaml")
	require.NoError(t, os.WriteFile(clientsFile, []byte(clientsYAML), 0o600))

	return &config.ServerConfig{
		HTTPPort:           "0",
		Issuer:             "https://sso.example.com",
		LogLevel:           "info",
		StorageDriver:      config.DriverSQLite,
		SQLitePath:         filepath.Join(dir, "sso.db"),
		AccessTokenSecret:  "access",
		RefreshTokenSecret: "refresh",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    time.Hour,
		SweepInterval:      time.Minute,
		RateLimitPerMinute: 60,
		ClientsFile:        clientsFile,
		WalletDomain:       "app.example.com",
		WalletURI:          "https://app.example.com",
		OtelServiceName:    "polkadot-sso-test",
	}
}

func newApp(t *testing.T, cfg *config.ServerConfig) *App {
	t.Helper()

	a, err := New(context.Background(), cfg, log.NewZerologAdapter(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	return a
}

func TestNewWiresSQLite(t *testing.T) {
	a := newApp(t, testConfig(t))

	assert.Equal(t, 1, a.Clients.Len())

	ch, err := a.Challenges.Create(context.Background(), services.CreateChallengeRequest{ClientID: "demo-client"})
	require.NoError(t, err)
	assert.Contains(t, ch.Message, "app.example.com")

	res, err := a.Sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Challenges)

	w := httptest.NewRecorder()
	a.HTTPServer().Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "storage")
}

func TestNewWithRedisDenylist(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.StorageDriver = config.DriverMemory
	cfg.RedisAddr = mr.Addr()
	cfg.RedisPrefix = "test"

	a := newApp(t, cfg)

	require.NoError(t, a.Denylist.Add(context.Background(), "jti-1", time.Now().Add(time.Minute)))
	assert.True(t, mr.Exists("test:denylist:jti-1"))

	w := httptest.NewRecorder()
	a.HTTPServer().Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "redis")
}

func TestMissingClientsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageDriver = config.DriverMemory
	cfg.ClientsFile = filepath.Join(t.TempDir(), "absent.yaml")

	a := newApp(t, cfg)
	assert.Zero(t, a.Clients.Len())
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), &config.ServerConfig{StorageDriver: "postgres"})
	require.Error(t, err)
}
