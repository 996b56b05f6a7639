package services

import (
	"context"

	"github.com/CoachCoe/polkadot-sso/client"
)

// ClientDirectory resolves and authenticates registered client applications.
type ClientDirectory interface {
	GetClient(ctx context.Context, clientID string) (*client.Client, error)
	ValidateClient(ctx context.Context, clientID, clientSecret string) (*client.Client, error)
	ValidateRedirectURI(c *client.Client, redirectURI string) error
}

var _ ClientDirectory = (*client.ClientService)(nil)
