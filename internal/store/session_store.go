package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elicit-dev/elicit/internal/domain"
)

// SessionStore persists interrupted interview sessions so a client can
// resume within the retention window.
type SessionStore interface {
	// Get returns the saved session for a client key, or nil when there is
	// nothing fresh to resume. Stale and unreadable entries are dropped.
	Get(ctx context.Context, key string) (*domain.SavedSession, error)
	// Put stores or replaces the saved session for a client key.
	Put(ctx context.Context, key string, sess domain.SavedSession) error
	// Delete removes the saved session for a client key.
	Delete(ctx context.Context, key string) error
}

// SQLiteSessionStore implements SessionStore backed by SQLite.
type SQLiteSessionStore struct {
	db  *DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteSessionStore creates a session store using the given database.
// A non-positive ttl selects the default resume window.
func NewSQLiteSessionStore(db *DB, ttl time.Duration) *SQLiteSessionStore {
	return &SQLiteSessionStore{db: db, ttl: ttl, now: time.Now}
}

// Get returns the saved session for a key. Entries past the resume window
// and rows that fail to decode are deleted and reported as absent, so a
// corrupt save never blocks starting fresh. Query failures are real errors.
func (s *SQLiteSessionStore) Get(ctx context.Context, key string) (*domain.SavedSession, error) {
	var scenarioID, messagesJSON, savedAt string
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT scenario_id, messages, saved_at FROM saved_sessions WHERE key = ?`, key,
	).Scan(&scenarioID, &messagesJSON, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading saved session: %w", err)
	}

	sess := domain.SavedSession{ScenarioID: scenarioID}
	if err := json.Unmarshal([]byte(messagesJSON), &sess.Messages); err != nil {
		s.db.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable saved session")
		s.deleteRow(ctx, key)
		return nil, nil
	}
	sess.SavedAt, err = time.Parse(time.RFC3339, savedAt)
	if err != nil {
		s.db.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable saved session")
		s.deleteRow(ctx, key)
		return nil, nil
	}

	if !sess.Resumable(s.now(), s.ttl) {
		s.deleteRow(ctx, key)
		return nil, nil
	}
	return &sess, nil
}

// Put stores or replaces the saved session for a key.
func (s *SQLiteSessionStore) Put(ctx context.Context, key string, sess domain.SavedSession) error {
	messagesJSON, err := json.Marshal(sess.Messages)
	if err != nil {
		return err
	}

	savedAt := sess.SavedAt
	if savedAt.IsZero() {
		savedAt = s.now()
	}

	_, err = s.db.sql.ExecContext(ctx,
		`INSERT INTO saved_sessions (key, scenario_id, messages, saved_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			scenario_id = excluded.scenario_id,
			messages = excluded.messages,
			saved_at = excluded.saved_at`,
		key, sess.ScenarioID, string(messagesJSON), savedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// Delete removes the saved session for a key.
func (s *SQLiteSessionStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.sql.ExecContext(ctx, `DELETE FROM saved_sessions WHERE key = ?`, key)
	return err
}

// Prune deletes all sessions saved before the cutoff. Returns the number of
// rows removed.
func (s *SQLiteSessionStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.sql.ExecContext(ctx,
		`DELETE FROM saved_sessions WHERE saved_at < ?`, cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteSessionStore) deleteRow(ctx context.Context, key string) {
	if _, err := s.db.sql.ExecContext(ctx, `DELETE FROM saved_sessions WHERE key = ?`, key); err != nil {
		s.db.log.Warn().Err(err).Str("key", key).Msg("failed to delete saved session")
	}
}
