package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CoachCoe/polkadot-sso/domain"
)

const challengeColumns = `id, provider, provider_name, client_id, subject_hint, code_verifier,
	code_challenge, code_challenge_method, state, nonce, message, redirect_url,
	created_at, expires_at, used`

func (s *Store) CreateChallenge(ctx context.Context, c *domain.Challenge) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO challenges (`+challengeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.Provider), c.ProviderName, c.ClientID, c.SubjectHint, c.CodeVerifier,
		c.CodeChallenge, c.CodeChallengeMethod, c.State, c.Nonce, c.Message, c.RedirectURL,
		toUnix(c.CreatedAt), toUnix(c.ExpiresAt), boolToInt(c.Used),
	)
	if err != nil {
		return fmt.Errorf("inserting challenge: %w", err)
	}

	return nil
}

func (s *Store) GetChallenge(ctx context.Context, id string) (*domain.Challenge, error) {
	return s.scanChallenge(s.db.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id))
}

func (s *Store) GetChallengeByState(ctx context.Context, state string) (*domain.Challenge, error) {
	return s.scanChallenge(s.db.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE state = ?`, state))
}

func (s *Store) scanChallenge(row *sql.Row) (*domain.Challenge, error) {
	var (
		c                    domain.Challenge
		provider             string
		createdAt, expiresAt int64
		used                 int
	)

	err := row.Scan(&c.ID, &provider, &c.ProviderName, &c.ClientID, &c.SubjectHint, &c.CodeVerifier,
		&c.CodeChallenge, &c.CodeChallengeMethod, &c.State, &c.Nonce, &c.Message, &c.RedirectURL,
		&createdAt, &expiresAt, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("scanning challenge: %w", err)
	}

	c.Provider = domain.ProviderKind(provider)
	c.CreatedAt = fromUnix(createdAt)
	c.ExpiresAt = fromUnix(expiresAt)
	c.Used = used == 1

	return &c, nil
}

// ClaimChallenge is a single conditional UPDATE; exactly one caller observes one affected row.
func (s *Store) ClaimChallenge(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE challenges SET used = 1 WHERE id = ? AND used = 0`, id)
	if err != nil {
		return false, fmt.Errorf("claiming challenge: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming challenge: %w", err)
	}

	return n == 1, nil
}

func (s *Store) DeleteExpiredChallenges(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM challenges WHERE expires_at < ? AND used = 0`, toUnix(before))
	if err != nil {
		return 0, fmt.Errorf("deleting expired challenges: %w", err)
	}

	return res.RowsAffected()
}
