// package repositories provides persistence layer implementations for all model types.
//
// Each repository runs against a [DBTX], so the same code serves a plain
// connection and an open transaction.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/tubesync/internal/shared"
)

// DBTX is satisfied by both [*sql.DB] and [*sql.Tx].
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// Sequence numbers provide human-readable ordering for entities (e.g., user #42, playlist #15).
// They are NOT exposed in API output but used internally for sorting and debugging.
func NextSequence(ctx context.Context, q DBTX, table string) (int, error) {
	var sequence int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	if err := q.QueryRowContext(ctx, query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}

// Store groups the repositories over one connection or transaction.
type Store struct {
	db        *sql.DB
	Users     *UserRepository
	Sessions  *SessionRepository
	Playlists *PlaylistRepository
	Videos    *VideoRepository
}

// NewStore creates a [Store] over db. Token columns are sealed with cipher, which may be nil.
func NewStore(db *sql.DB, cipher *shared.Cipher) *Store {
	s := newStore(db, cipher)
	s.db = db
	return s
}

func newStore(q DBTX, cipher *shared.Cipher) *Store {
	return &Store{
		Users:     NewUserRepository(q, cipher),
		Sessions:  NewSessionRepository(q),
		Playlists: NewPlaylistRepository(q),
		Videos:    NewVideoRepository(q),
	}
}

// InTx runs fn with a Store bound to a single transaction, committing when fn returns nil.
//
// Called on a Store that is already transactional, fn joins the open transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &shared.PersistenceError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback()

	if err := fn(newStore(tx, s.Users.cipher)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &shared.PersistenceError{Op: "commit transaction", Err: err}
	}
	return nil
}

// persistErr wraps err with the operation and key. [sql.ErrNoRows] becomes [shared.ErrNotFound].
func persistErr(op, key string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		err = shared.ErrNotFound
	}
	return &shared.PersistenceError{Op: op, Key: key, Err: err}
}

// affected converts a zero-row result into [shared.ErrNotFound].
func affected(result sql.Result, op, key string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return persistErr(op, key, fmt.Errorf("failed to get affected rows: %w", err))
	}
	if rows == 0 {
		return persistErr(op, key, shared.ErrNotFound)
	}
	return nil
}
