package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CoachCoe/polkadot-sso/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ChallengeRepository struct {
	collection *mongo.Collection
}

// NewChallengeRepository creates the repository and ensures its indexes.
func NewChallengeRepository(ctx context.Context, db *mongo.Database) (*ChallengeRepository, error) {
	repo := &ChallengeRepository{collection: db.Collection(ChallengesCollection)}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
		},
	}

	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		return nil, fmt.Errorf("failed to create challenge indexes: %w", err)
	}

	return repo, nil
}

func (r *ChallengeRepository) CreateChallenge(ctx context.Context, challenge *domain.Challenge) error {
	if challenge.ID == "" {
		return errors.New("challenge id cannot be empty")
	}

	if _, err := r.collection.InsertOne(ctx, challenge); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("challenge %s already exists: %w", challenge.ID, err)
		}

		log.Error().Err(err).Str("challenge_id", challenge.ID).Msg("Error saving challenge")

		return fmt.Errorf("failed to save challenge: %w", err)
	}

	return nil
}

func (r *ChallengeRepository) GetChallenge(ctx context.Context, id string) (*domain.Challenge, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *ChallengeRepository) GetChallengeByState(ctx context.Context, state string) (*domain.Challenge, error) {
	return r.findOne(ctx, bson.M{"state": state})
}

func (r *ChallengeRepository) findOne(ctx context.Context, filter bson.M) (*domain.Challenge, error) {
	var challenge domain.Challenge

	if err := r.collection.FindOne(ctx, filter).Decode(&challenge); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}

		return nil, fmt.Errorf("failed to retrieve challenge: %w", err)
	}

	return &challenge, nil
}

// ClaimChallenge flips used from false to true in a single conditional update.
func (r *ChallengeRepository) ClaimChallenge(ctx context.Context, id string) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "used": false},
		bson.M{"$set": bson.M{"used": true}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim challenge: %w", err)
	}

	return result.ModifiedCount == 1, nil
}

func (r *ChallengeRepository) DeleteExpiredChallenges(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$lt": before.UTC()},
		"used":       false,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired challenges: %w", err)
	}

	return result.DeletedCount, nil
}

var _ domain.ChallengeRepository = (*ChallengeRepository)(nil)
