package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Session describes one stored dataset.
type Session struct {
	ID        string    `json:"id"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionRepository stores serialized datasets keyed by session id. It
// satisfies dataset.Storage.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Write inserts or replaces the dataset stored under id.
func (r *SessionRepository) Write(ctx context.Context, id string, data []byte) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, data, size, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, size = excluded.size, updated_at = excluded.updated_at`,
		id, data, len(data), now, now,
	)
	return err
}

// Read returns the dataset stored under id, or ErrNotFound.
func (r *SessionRepository) Read(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// List returns all sessions, most recently updated first.
func (r *SessionRepository) List(ctx context.Context) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, size, created_at, updated_at FROM sessions ORDER BY updated_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Size, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Latest returns the most recently updated session, or ErrNotFound.
func (r *SessionRepository) Latest(ctx context.Context) (*Session, error) {
	s := &Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, size, created_at, updated_at FROM sessions ORDER BY updated_at DESC, id LIMIT 1`,
	).Scan(&s.ID, &s.Size, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}
