package client_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/CoachCoe/polkadot-sso/client"
	serrors "github.com/CoachCoe/polkadot-sso/errors"
	"github.com/CoachCoe/polkadot-sso/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T) *client.ClientService {
	t.Helper()

	hasher := auth.NewBcryptPasswordHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("s3cret")
	require.NoError(t, err)

	store, err := client.NewMemoryClientStore(
		client.Client{ID: "demo-client", Name: "Demo", RedirectURL: "https://demo.example.com/callback", Active: true},
		client.Client{ID: "backend", SecretHash: hash, RedirectURL: "https://app.example.com/cb", Active: true},
		client.Client{ID: "disabled", RedirectURL: "https://off.example.com/cb"},
	)
	require.NoError(t, err)

	return client.NewClientService(store, hasher)
}

func TestGetClient(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	c, err := svc.GetClient(ctx, "demo-client")
	require.NoError(t, err)
	assert.Equal(t, "Demo", c.Name)

	_, err = svc.GetClient(ctx, "nope")
	assert.True(t, serrors.IsKind(err, serrors.KindNotFound))

	_, err = svc.GetClient(ctx, "disabled")
	assert.True(t, serrors.IsKind(err, serrors.KindValidation))

	_, err = svc.GetClient(ctx, "")
	assert.True(t, serrors.IsKind(err, serrors.KindValidation))
}

func TestValidateClient(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.ValidateClient(ctx, "backend", "s3cret")
	require.NoError(t, err)

	_, err = svc.ValidateClient(ctx, "backend", "wrong")
	assert.True(t, serrors.IsKind(err, serrors.KindInvalidClient))

	_, err = svc.ValidateClient(ctx, "demo-client", "")
	require.NoError(t, err)

	_, err = svc.ValidateClient(ctx, "demo-client", "unexpected")
	assert.True(t, serrors.IsKind(err, serrors.KindInvalidClient))

	_, err = svc.ValidateClient(ctx, "missing", "")
	assert.True(t, serrors.IsKind(err, serrors.KindInvalidClient))

	_, err = svc.ValidateClient(ctx, "disabled", "")
	assert.True(t, serrors.IsKind(err, serrors.KindInvalidClient))
}

func TestValidateRedirectURI(t *testing.T) {
	svc := newService(t)

	c, err := svc.GetClient(context.Background(), "demo-client")
	require.NoError(t, err)

	require.NoError(t, svc.ValidateRedirectURI(c, ""))
	require.NoError(t, svc.ValidateRedirectURI(c, "https://demo.example.com/callback"))
	assert.True(t, serrors.IsKind(svc.ValidateRedirectURI(c, "https://evil.example.com"), serrors.KindInvalidGrant))
}

func TestLoadRegistryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
clients:
  - client_id: demo-client
    client_name: Demo
    redirect_url: https://demo.example.com/callback
    allowed_origins: ["https://demo.example.com"]
    active: true
`), 0o600))

	store, err := client.LoadRegistryFile(path)
	require.NoError(t, err)

	c, err := store.GetClient(context.Background(), "demo-client")
	require.NoError(t, err)
	assert.True(t, c.Active)
	assert.True(t, c.IsPublic())
	assert.True(t, c.AllowsOrigin("https://demo.example.com"))
	assert.False(t, c.AllowsOrigin("https://evil.example.com"))

	all, err := store.ListClients(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestParseRegistryRejectsInvalid(t *testing.T) {
	_, err := client.ParseRegistry([]byte("clients:\n  - client_id: x\n    redirect_url: /relative\n"))
	require.Error(t, err)

	_, err = client.ParseRegistry([]byte("clients:\n  - client_id: x\n    redirect_url: https://a/b\n  - client_id: x\n    redirect_url: https://a/b\n"))
	require.ErrorContains(t, err, "duplicate")
}
