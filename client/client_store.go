package client

import "context"

// ClientStore looks up registered clients. Unknown ids return domain.ErrNotFound.
type ClientStore interface {
	GetClient(ctx context.Context, clientID string) (*Client, error)
	ListClients(ctx context.Context) ([]*Client, error)
}
