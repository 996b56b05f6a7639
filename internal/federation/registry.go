package federation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/CoachCoe/polkadot-sso/domain"
)

// Registry holds the configured providers by name. It is immutable after construction.
type Registry struct {
	providers map[string]OAuth2Provider
}

// NewRegistry wraps already constructed providers.
func NewRegistry(providers ...OAuth2Provider) *Registry {
	r := &Registry{providers: make(map[string]OAuth2Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}

	return r
}

// NewRegistryFromConfig builds a provider per configuration entry; "google" gets its well-known defaults.
func NewRegistryFromConfig(ctx context.Context, configs []domain.IdentityProvider, opts ...ProviderOption) (*Registry, error) {
	providers := make([]OAuth2Provider, 0, len(configs))

	for i := range configs {
		cfg := configs[i]

		var (
			p   OAuth2Provider
			err error
		)

		if strings.EqualFold(cfg.Name, "google") || cfg.IssuerURL == GoogleIssuer {
			p, err = NewGoogleProvider(ctx, &cfg, opts...)
		} else {
			p, err = NewBaseProvider(ctx, &cfg, opts...)
		}

		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", cfg.Name, err)
		}

		providers = append(providers, p)
	}

	return NewRegistry(providers...), nil
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (OAuth2Provider, error) {
	if r == nil {
		return nil, ErrProviderNotFound
	}

	p, ok := r.providers[name]
	if !ok {
		return nil, ErrProviderNotFound
	}

	return p, nil
}

// Names lists registered provider names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}

	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}
