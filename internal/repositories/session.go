package repositories

import (
	"context"
	"time"

	"github.com/desertthunder/tubesync/internal/models"
)

// SessionRepository persists opaque session ids.
type SessionRepository struct {
	q DBTX
}

// NewSessionRepository creates a new [SessionRepository]
func NewSessionRepository(q DBTX) *SessionRepository {
	return &SessionRepository{q: q}
}

// Create inserts a session row. The caller supplies the id and CSRF token.
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO sessions (id, user_id, csrf_token, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.q.ExecContext(ctx, query, s.ID, s.UserID, s.CSRFToken, s.ExpiresAt, s.CreatedAt); err != nil {
		return persistErr("create session", s.UserID, err)
	}
	return nil
}

// Get retrieves a session by id, expired or not.
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	query := `SELECT id, user_id, csrf_token, expires_at, created_at FROM sessions WHERE id = ?`
	err := r.q.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.UserID, &s.CSRFToken, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, persistErr("get session", "", err)
	}
	return &s, nil
}

// Delete removes a session. Deleting an absent session succeeds.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return persistErr("delete session", "", err)
	}
	return nil
}

// DeleteForUser removes every session of a user.
func (r *SessionRepository) DeleteForUser(ctx context.Context, userID string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return persistErr("delete sessions", userID, err)
	}
	return nil
}

// DeleteExpired removes sessions that expired before now and returns how many were removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, persistErr("delete expired sessions", "", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, persistErr("delete expired sessions", "", err)
	}
	return n, nil
}
