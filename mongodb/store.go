package mongodb

import (
	"context"

	"github.com/CoachCoe/polkadot-sso/domain"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store combines the MongoDB repositories behind domain.Store.
type Store struct {
	*ChallengeRepository
	*AuthCodeRepository
	*SessionRepositoryMongo

	client *mongo.Client
}

// NewStore builds every repository on db, ensuring indexes. client may be nil when the
// caller owns the connection.
func NewStore(ctx context.Context, client *mongo.Client, db *mongo.Database) (*Store, error) {
	challenges, err := NewChallengeRepository(ctx, db)
	if err != nil {
		return nil, err
	}

	codes, err := NewAuthCodeRepository(ctx, db)
	if err != nil {
		return nil, err
	}

	sessions, err := NewSessionRepositoryMongo(ctx, db)
	if err != nil {
		return nil, err
	}

	return &Store{
		ChallengeRepository:    challenges,
		AuthCodeRepository:     codes,
		SessionRepositoryMongo: sessions,
		client:                 client,
	}, nil
}

// Ping reports whether the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}

	return Ping(ctx, s.client)
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}

	return s.client.Disconnect(context.Background())
}

var _ domain.Store = (*Store)(nil)
