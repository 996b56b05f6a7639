package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CoachCoe/polkadot-sso/domain"
)

func (s *Store) SaveAuthCode(ctx context.Context, code *domain.AuthorizationCode) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO authorization_codes (code_hash, subject, client_id, session_id, created_at, expires_at, used)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		code.CodeHash, code.Subject, code.ClientID, code.SessionID,
		toUnix(code.CreatedAt), toUnix(code.ExpiresAt), boolToInt(code.Used),
	)
	if err != nil {
		return fmt.Errorf("inserting authorization code: %w", err)
	}

	return nil
}

func (s *Store) GetAuthCode(ctx context.Context, codeHash string) (*domain.AuthorizationCode, error) {
	var (
		code                 domain.AuthorizationCode
		createdAt, expiresAt int64
		used                 int
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT code_hash, subject, client_id, session_id, created_at, expires_at, used
		 FROM authorization_codes WHERE code_hash = ?`, codeHash,
	).Scan(&code.CodeHash, &code.Subject, &code.ClientID, &code.SessionID, &createdAt, &expiresAt, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("scanning authorization code: %w", err)
	}

	code.CreatedAt = fromUnix(createdAt)
	code.ExpiresAt = fromUnix(expiresAt)
	code.Used = used == 1

	return &code, nil
}

func (s *Store) ClaimAuthCode(ctx context.Context, codeHash string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE authorization_codes SET used = 1 WHERE code_hash = ? AND used = 0`, codeHash)
	if err != nil {
		return false, fmt.Errorf("claiming authorization code: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming authorization code: %w", err)
	}

	return n == 1, nil
}

func (s *Store) DeleteExpiredAuthCodes(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM authorization_codes WHERE expires_at < ? AND used = 0`, toUnix(before))
	if err != nil {
		return 0, fmt.Errorf("deleting expired authorization codes: %w", err)
	}

	return res.RowsAffected()
}
