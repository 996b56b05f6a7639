// Package sqlite implements domain.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/CoachCoe/polkadot-sso/domain"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Store implements domain.Store. Timestamps are stored as unix nanoseconds.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and ensures the schema exists.
// Parent directories are created if needed.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}

	if err := s.createSchema(context.Background()); err != nil {
		db.Close()

		return nil, fmt.Errorf("creating schema: %w", err)
	}

	log.Info().Str("path", path).Msg("SQLite store initialized")

	return s, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS challenges (
			id                    TEXT PRIMARY KEY,
			provider              TEXT NOT NULL,
			provider_name         TEXT NOT NULL DEFAULT '',
			client_id             TEXT NOT NULL,
			subject_hint          TEXT NOT NULL DEFAULT '',
			code_verifier         TEXT NOT NULL,
			code_challenge        TEXT NOT NULL,
			code_challenge_method TEXT NOT NULL,
			state                 TEXT NOT NULL UNIQUE,
			nonce                 TEXT NOT NULL,
			message               TEXT NOT NULL DEFAULT '',
			redirect_url          TEXT NOT NULL DEFAULT '',
			created_at            INTEGER NOT NULL,
			expires_at            INTEGER NOT NULL,
			used                  INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_challenges_expires_at ON challenges(expires_at);

		CREATE TABLE IF NOT EXISTS authorization_codes (
			code_hash  TEXT PRIMARY KEY,
			subject    TEXT NOT NULL,
			client_id  TEXT NOT NULL,
			session_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			used       INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_authorization_codes_expires_at ON authorization_codes(expires_at);

		CREATE TABLE IF NOT EXISTS sessions (
			id                 TEXT PRIMARY KEY,
			subject            TEXT NOT NULL,
			client_id          TEXT NOT NULL,
			fingerprint        TEXT NOT NULL,
			access_token_id    TEXT NOT NULL DEFAULT '',
			refresh_token_id   TEXT NOT NULL DEFAULT '',
			access_expires_at  INTEGER NOT NULL DEFAULT 0,
			refresh_expires_at INTEGER NOT NULL DEFAULT 0,
			claims_json        TEXT NOT NULL DEFAULT '{}',
			created_at         INTEGER NOT NULL,
			last_used_at       INTEGER NOT NULL,
			active             INTEGER NOT NULL DEFAULT 1
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_subject_client ON sessions(subject, client_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_active_refresh ON sessions(active, refresh_expires_at);
	`

	_, err := s.db.ExecContext(ctx, schema)

	return err
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}

	return time.Unix(0, n).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

var _ domain.Store = (*Store)(nil)
