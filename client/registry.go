package client

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/CoachCoe/polkadot-sso/domain"
	"gopkg.in/yaml.v3"
)

// RegistryFile is the YAML layout of the clients file.
type RegistryFile struct {
	Clients []Client `yaml:"clients"`
}

// MemoryClientStore is a ClientStore populated at start-up.
type MemoryClientStore struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewMemoryClientStore validates and indexes the given clients.
func NewMemoryClientStore(clients ...Client) (*MemoryClientStore, error) {
	s := &MemoryClientStore{clients: make(map[string]Client, len(clients))}

	for i := range clients {
		c := clients[i]
		if err := c.validate(); err != nil {
			return nil, err
		}

		if _, dup := s.clients[c.ID]; dup {
			return nil, fmt.Errorf("duplicate client_id %q", c.ID)
		}

		s.clients[c.ID] = c
	}

	return s, nil
}

// LoadRegistryFile reads a YAML clients file.
func LoadRegistryFile(path string) (*MemoryClientStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading clients file: %w", err)
	}

	return ParseRegistry(raw)
}

// ParseRegistry decodes YAML registry content.
func ParseRegistry(raw []byte) (*MemoryClientStore, error) {
	var file RegistryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing clients file: %w", err)
	}

	return NewMemoryClientStore(file.Clients...)
}

func (s *MemoryClientStore) GetClient(_ context.Context, clientID string) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[clientID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return &c, nil
}

func (s *MemoryClientStore) ListClients(_ context.Context) ([]*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Client, 0, len(s.clients))
	for id := range s.clients {
		c := s.clients[id]
		out = append(out, &c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

var _ ClientStore = (*MemoryClientStore)(nil)

// Len returns the number of registered clients.
func (s *MemoryClientStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.clients)
}
