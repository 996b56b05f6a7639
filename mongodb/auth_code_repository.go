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
)

type AuthCodeRepository struct {
	authCodes *mongo.Collection
}

func NewAuthCodeRepository(ctx context.Context, db *mongo.Database) (*AuthCodeRepository, error) {
	repo := &AuthCodeRepository{authCodes: db.Collection(CodesCollection)}

	_, err := repo.authCodes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "expires_at", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization code indexes: %w", err)
	}

	return repo, nil
}

func (r *AuthCodeRepository) SaveAuthCode(ctx context.Context, authCode *domain.AuthorizationCode) error {
	if authCode.CodeHash == "" {
		return errors.New("auth code hash cannot be empty")
	}

	if _, err := r.authCodes.InsertOne(ctx, authCode); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("authorization code already exists: %w", err)
		}

		log.Error().Err(err).Str("session_id", authCode.SessionID).Msg("Error saving authorization code")

		return fmt.Errorf("failed to save authorization code: %w", err)
	}

	log.Debug().Str("session_id", authCode.SessionID).Str("client_id", authCode.ClientID).Msg("Authorization code saved")

	return nil
}

func (r *AuthCodeRepository) GetAuthCode(ctx context.Context, codeHash string) (*domain.AuthorizationCode, error) {
	var authCode domain.AuthorizationCode

	if err := r.authCodes.FindOne(ctx, bson.M{"_id": codeHash}).Decode(&authCode); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}

		return nil, fmt.Errorf("failed to retrieve authorization code: %w", err)
	}

	return &authCode, nil
}

func (r *AuthCodeRepository) ClaimAuthCode(ctx context.Context, codeHash string) (bool, error) {
	result, err := r.authCodes.UpdateOne(ctx,
		bson.M{"_id": codeHash, "used": false},
		bson.M{"$set": bson.M{"used": true}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim authorization code: %w", err)
	}

	return result.ModifiedCount == 1, nil
}

func (r *AuthCodeRepository) DeleteExpiredAuthCodes(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.authCodes.DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$lt": before.UTC()},
		"used":       false,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired authorization codes: %w", err)
	}

	return result.DeletedCount, nil
}

var _ domain.AuthorizationCodeRepository = (*AuthCodeRepository)(nil)
