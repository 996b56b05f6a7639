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

// SessionRepositoryMongo implements the domain.SessionRepository interface using MongoDB.
type SessionRepositoryMongo struct {
	collection *mongo.Collection
}

// NewSessionRepositoryMongo creates a new SessionRepositoryMongo.
// It also ensures that necessary indexes are created on the collection.
func NewSessionRepositoryMongo(ctx context.Context, db *mongo.Database) (*SessionRepositoryMongo, error) {
	repo := &SessionRepositoryMongo{
		collection: db.Collection(SessionsCollection),
	}

	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "subject", Value: 1}, {Key: "client_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "active", Value: 1}, {Key: "refresh_expires_at", Value: 1}},
		},
	}

	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels, options.CreateIndexes()); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for sessions collection")

		return nil, fmt.Errorf("failed to create session indexes: %w", err)
	}

	return repo, nil
}

func (r *SessionRepositoryMongo) StoreSession(ctx context.Context, session *domain.Session) error {
	if session.ID == "" {
		return errors.New("session id cannot be empty")
	}

	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.New("session with this ID already exists")
		}

		log.Error().Err(err).Msg("Error storing session in MongoDB")

		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

func (r *SessionRepositoryMongo) GetSessionByID(ctx context.Context, id string) (*domain.Session, error) {
	var session domain.Session

	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}

		log.Error().Err(err).Str("id", id).Msg("Error getting session by ID from MongoDB")

		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

// UpdateSessionTokens records newly issued token ids; inactive sessions are never revived.
func (r *SessionRepositoryMongo) UpdateSessionTokens(ctx context.Context, id string, tokens domain.SessionTokens) error {
	filter := bson.M{"_id": id, "active": true}
	if tokens.PreviousRefreshTokenID != "" {
		filter["refresh_token_id"] = tokens.PreviousRefreshTokenID
	}

	result, err := r.collection.UpdateOne(ctx,
		filter,
		bson.M{"$set": bson.M{
			"access_token_id":    tokens.AccessTokenID,
			"refresh_token_id":   tokens.RefreshTokenID,
			"access_expires_at":  tokens.AccessExpiresAt.UTC(),
			"refresh_expires_at": tokens.RefreshExpiresAt.UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update session tokens: %w", err)
	}

	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *SessionRepositoryMongo) TouchSession(ctx context.Context, id string, at time.Time) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "active": true},
		bson.M{"$set": bson.M{"last_used_at": at.UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return nil
}

func (r *SessionRepositoryMongo) DeactivateSession(ctx context.Context, id string) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "active": true},
		bson.M{"$set": bson.M{"active": false}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate session: %w", err)
	}

	return result.ModifiedCount == 1, nil
}

func (r *SessionRepositoryMongo) ExpireSessions(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.collection.UpdateMany(ctx,
		// Sessions still waiting for their code exchange carry a zero refresh expiry.
		bson.M{"active": true, "refresh_expires_at": bson.M{"$lt": before.UTC(), "$gt": time.Unix(0, 0).UTC()}},
		bson.M{"$set": bson.M{"active": false}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire sessions: %w", err)
	}

	return result.ModifiedCount, nil
}

func (r *SessionRepositoryMongo) ListSessions(ctx context.Context, filter domain.SessionFilter) ([]*domain.Session, error) {
	mongoFilter := bson.M{}

	if filter.Subject != "" {
		mongoFilter["subject"] = filter.Subject
	}

	if filter.ClientID != "" {
		mongoFilter["client_id"] = filter.ClientID
	}

	if filter.ActiveOnly {
		mongoFilter["active"] = true
	}

	cursor, err := r.collection.Find(ctx, mongoFilter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*domain.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	return sessions, nil
}

var _ domain.SessionRepository = (*SessionRepositoryMongo)(nil)
