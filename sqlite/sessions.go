package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CoachCoe/polkadot-sso/domain"
)

const sessionColumns = `id, subject, client_id, fingerprint, access_token_id, refresh_token_id,
	access_expires_at, refresh_expires_at, claims_json, created_at, last_used_at, active`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) StoreSession(ctx context.Context, session *domain.Session) error {
	claims, err := json.Marshal(session.Claims)
	if err != nil {
		return fmt.Errorf("encoding session claims: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Subject, session.ClientID, session.Fingerprint,
		session.AccessTokenID, session.RefreshTokenID,
		toUnix(session.AccessExpiresAt), toUnix(session.RefreshExpiresAt),
		string(claims), toUnix(session.CreatedAt), toUnix(session.LastUsedAt), boolToInt(session.Active),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	return nil
}

func (s *Store) GetSessionByID(ctx context.Context, id string) (*domain.Session, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}

	return session, err
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		session                        domain.Session
		accessExp, refreshExp, created int64
		lastUsed                       int64
		claims                         string
		active                         int
	)

	err := row.Scan(&session.ID, &session.Subject, &session.ClientID, &session.Fingerprint,
		&session.AccessTokenID, &session.RefreshTokenID, &accessExp, &refreshExp,
		&claims, &created, &lastUsed, &active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("scanning session: %w", err)
	}

	if claims != "" && claims != "null" {
		if err := json.Unmarshal([]byte(claims), &session.Claims); err != nil {
			return nil, fmt.Errorf("decoding session claims: %w", err)
		}
	}

	session.AccessExpiresAt = fromUnix(accessExp)
	session.RefreshExpiresAt = fromUnix(refreshExp)
	session.CreatedAt = fromUnix(created)
	session.LastUsedAt = fromUnix(lastUsed)
	session.Active = active == 1

	return &session, nil
}

func (s *Store) UpdateSessionTokens(ctx context.Context, id string, tokens domain.SessionTokens) error {
	query := `UPDATE sessions
		SET access_token_id = ?, refresh_token_id = ?, access_expires_at = ?, refresh_expires_at = ?
		WHERE id = ? AND active = 1`
	args := []any{
		tokens.AccessTokenID, tokens.RefreshTokenID,
		toUnix(tokens.AccessExpiresAt), toUnix(tokens.RefreshExpiresAt), id,
	}

	if tokens.PreviousRefreshTokenID != "" {
		query += " AND refresh_token_id = ?"
		args = append(args, tokens.PreviousRefreshTokenID)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating session tokens: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating session tokens: %w", err)
	}

	if n == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (s *Store) TouchSession(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_used_at = ? WHERE id = ? AND active = 1`, toUnix(at), id)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}

	return nil
}

func (s *Store) DeactivateSession(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET active = 0 WHERE id = ? AND active = 1`, id)
	if err != nil {
		return false, fmt.Errorf("deactivating session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivating session: %w", err)
	}

	return n == 1, nil
}

func (s *Store) ExpireSessions(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET active = 0 WHERE active = 1 AND refresh_expires_at > 0 AND refresh_expires_at < ?`,
		toUnix(before))
	if err != nil {
		return 0, fmt.Errorf("expiring sessions: %w", err)
	}

	return res.RowsAffected()
}

func (s *Store) ListSessions(ctx context.Context, filter domain.SessionFilter) ([]*domain.Session, error) {
	var (
		where []string
		args  []any
	)

	if filter.Subject != "" {
		where = append(where, "subject = ?")
		args = append(args, filter.Subject)
	}

	if filter.ClientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, filter.ClientID)
	}

	if filter.ActiveOnly {
		where = append(where, "active = 1")
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session

	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}
