// ABOUTME: SQLite-backed persistence for the signed-in session using modernc.org/sqlite
// ABOUTME: Saves/loads/clears the single current session with automatic schema creation

package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoSession is returned when no stored session exists.
var ErrNoSession = errors.New("no stored session")

// Session is the locally persisted token bundle for the signed-in user.
type Session struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	SavedAt      time.Time
}

// Expired reports whether the access token is past (or within a minute
// of) its expiry.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt.Add(-time.Minute))
}

// Store persists the current session in a local SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the session database at the given path.
// Parent directories are created if needed.
func NewStore(path string) (*Store, error) {
	logger := slog.Default().With("component", "session")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("session store initialized", "path", path)
	return s, nil
}

// createSchema creates the session table if it doesn't exist. One row,
// fixed id: the store holds at most one session.
func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id            INTEGER PRIMARY KEY CHECK (id = 1),
			user_id       TEXT NOT NULL,
			email         TEXT NOT NULL,
			access_token  TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at    TEXT NOT NULL,
			saved_at      TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save stores the session, replacing any previous one.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	query := `
		INSERT INTO sessions (id, user_id, email, access_token, refresh_token, expires_at, saved_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			saved_at = excluded.saved_at
	`
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query,
		sess.UserID,
		sess.Email,
		sess.AccessToken,
		sess.RefreshToken,
		sess.ExpiresAt.UTC().Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	s.logger.Debug("session saved", "user_id", sess.UserID)
	return nil
}

// Load returns the stored session, or ErrNoSession when none exists.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	query := `
		SELECT user_id, email, access_token, refresh_token, expires_at, saved_at
		FROM sessions WHERE id = 1
	`
	sess := &Session{}
	var expiresStr, savedStr string
	err := s.db.QueryRowContext(ctx, query).Scan(
		&sess.UserID,
		&sess.Email,
		&sess.AccessToken,
		&sess.RefreshToken,
		&expiresStr,
		&savedStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	if sess.ExpiresAt, err = time.Parse(time.RFC3339, expiresStr); err != nil {
		return nil, fmt.Errorf("parsing session expiry: %w", err)
	}
	if sess.SavedAt, err = time.Parse(time.RFC3339, savedStr); err != nil {
		return nil, fmt.Errorf("parsing session save time: %w", err)
	}
	return sess, nil
}

// Clear removes the stored session. Clearing an empty store is not an
// error.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = 1`); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	s.logger.Debug("session cleared")
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
