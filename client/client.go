package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/CoachCoe/polkadot-sso/domain"
	serrors "github.com/CoachCoe/polkadot-sso/errors"
)

// Client is a registered relying application.
type Client struct {
	ID   string `yaml:"client_id"   json:"client_id"`
	Name string `yaml:"client_name" json:"name,omitempty"`
	// SecretHash is a bcrypt hash. Clients without one are public and send no secret.
	SecretHash     string   `yaml:"secret_hash"     json:"-"`
	RedirectURL    string   `yaml:"redirect_url"    json:"redirect_url"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins,omitempty"`
	Active         bool     `yaml:"active"          json:"active"`
}

// IsPublic reports whether the client authenticates without a secret.
func (c *Client) IsPublic() bool {
	return c.SecretHash == ""
}

// SecretHasher verifies client secrets.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(hashed, secret string) error
}

// ClientService handles client lookup and authentication.
type ClientService struct {
	store  ClientStore
	hasher SecretHasher
}

// NewClientService creates a new ClientService instance
func NewClientService(store ClientStore, hasher SecretHasher) *ClientService {
	return &ClientService{
		store:  store,
		hasher: hasher,
	}
}

// GetClient returns an active client or a NotFound/Validation error.
func (s *ClientService) GetClient(ctx context.Context, clientID string) (*Client, error) {
	if clientID == "" {
		return nil, serrors.NewValidation("client_id is required")
	}

	c, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, serrors.NewNotFound("unknown client")
		}

		return nil, serrors.NewDatabase("client lookup", err)
	}

	if !c.Active {
		return nil, serrors.NewValidation("client is not active")
	}

	return c, nil
}

// ValidateClient authenticates a client. Any failure is reported as InvalidClient.
func (s *ClientService) ValidateClient(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	c, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, serrors.NewInvalidClient("client authentication failed")
		}

		return nil, serrors.NewDatabase("client lookup", err)
	}

	if !c.Active {
		return nil, serrors.NewInvalidClient("client authentication failed")
	}

	if c.IsPublic() {
		if clientSecret != "" {
			return nil, serrors.NewInvalidClient("client authentication failed")
		}

		return c, nil
	}

	if err := s.hasher.Verify(c.SecretHash, clientSecret); err != nil {
		return nil, serrors.NewInvalidClient("client authentication failed")
	}

	return c, nil
}

// ValidateRedirectURI checks that redirectURI is the client's registered redirect URL.
func (s *ClientService) ValidateRedirectURI(c *Client, redirectURI string) error {
	if redirectURI == "" || redirectURI == c.RedirectURL {
		return nil
	}

	return serrors.NewInvalidGrant("redirect_uri does not match")
}

// AllowsOrigin reports whether a browser origin may call the API on behalf of the client.
func (c *Client) AllowsOrigin(origin string) bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}

	return false
}

func (c *Client) validate() error {
	if c.ID == "" {
		return errors.New("client_id is required")
	}

	if c.RedirectURL == "" {
		return fmt.Errorf("client %s: redirect_url is required", c.ID)
	}

	u, err := url.Parse(c.RedirectURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("client %s: redirect_url must be absolute", c.ID)
	}

	return nil
}
