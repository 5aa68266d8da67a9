package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/shared"
)

const userColumns = `id, sequence, email, name, access_token, refresh_token, token_type, scope, token_expiry, created_at, updated_at`

// UserRepository persists [models.User] rows and their token columns.
type UserRepository struct {
	q      DBTX
	cipher *shared.Cipher
}

// NewUserRepository creates a new [UserRepository]. A nil cipher stores tokens as given.
func NewUserRepository(q DBTX, cipher *shared.Cipher) *UserRepository {
	if cipher == nil {
		cipher, _ = shared.NewCipher(nil)
	}
	return &UserRepository{q: q, cipher: cipher}
}

// Create inserts a new user with generated ID and sequence
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return persistErr("create user", user.Email, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
	}

	sequence, err := NextSequence(ctx, r.q, "users")
	if err != nil {
		return persistErr("create user", user.Email, err)
	}

	access, refresh, err := r.seal(user)
	if err != nil {
		return persistErr("create user", user.Email, err)
	}

	now := time.Now().UTC()
	id := shared.GenerateID()

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.q.ExecContext(ctx, query,
		id, sequence, user.Email, user.Name,
		access, refresh, user.TokenType, user.Scope, user.TokenExpiry,
		now, now,
	)
	if err != nil {
		return persistErr("create user", user.Email, err)
	}

	user.ID = id
	user.Sequence = sequence
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := r.scan(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, persistErr("get user", id, err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	user, err := r.scan(r.q.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, persistErr("get user by email", email, err)
	}
	return user, nil
}

// Update writes the name and token columns of an existing user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return persistErr("update user", user.ID, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
	}

	access, refresh, err := r.seal(user)
	if err != nil {
		return persistErr("update user", user.ID, err)
	}

	now := time.Now().UTC()
	query := `
		UPDATE users
		SET name = ?, access_token = ?, refresh_token = ?, token_type = ?, scope = ?, token_expiry = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.q.ExecContext(ctx, query,
		user.Name, access, refresh, user.TokenType, user.Scope, user.TokenExpiry, now, user.ID,
	)
	if err != nil {
		return persistErr("update user", user.ID, err)
	}
	if err := affected(result, "update user", user.ID); err != nil {
		return err
	}

	user.UpdatedAt = now
	return nil
}

// Upsert creates the user or updates the row with the same email, keeping its ID.
//
// An empty refresh token on an existing user keeps the stored one.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	existing, err := r.GetByEmail(ctx, user.Email)
	if errors.Is(err, shared.ErrNotFound) {
		return r.Create(ctx, user)
	}
	if err != nil {
		return err
	}

	user.ID = existing.ID
	user.Sequence = existing.Sequence
	user.CreatedAt = existing.CreatedAt
	if user.Name == "" {
		user.Name = existing.Name
	}
	if user.RefreshToken == "" {
		user.RefreshToken = existing.RefreshToken
	}
	return r.Update(ctx, user)
}

// SaveToken replaces the token columns for a user.
func (r *UserRepository) SaveToken(ctx context.Context, userID string, tok *models.Token) error {
	user, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	user.SetToken(tok)
	return r.Update(ctx, user)
}

// ClearToken erases the token columns for a user. A missing user is not an error.
func (r *UserRepository) ClearToken(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET access_token = '', refresh_token = '', token_type = '', scope = '', token_expiry = 0, updated_at = ?
		WHERE id = ?
	`
	if _, err := r.q.ExecContext(ctx, query, time.Now().UTC(), userID); err != nil {
		return persistErr("clear token", userID, err)
	}
	return nil
}

// List retrieves all users ordered by sequence
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY sequence ASC`)
	if err != nil {
		return nil, persistErr("list users", "", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := r.scan(rows)
		if err != nil {
			return nil, persistErr("list users", "", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list users", "", err)
	}
	return users, nil
}

// Delete removes a user; sessions, playlists and videos cascade.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return persistErr("delete user", id, err)
	}
	return affected(result, "delete user", id)
}

func (r *UserRepository) seal(user *models.User) (string, string, error) {
	access, err := r.cipher.Seal(user.AccessToken)
	if err != nil {
		return "", "", err
	}
	refresh, err := r.cipher.Seal(user.RefreshToken)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scan(row scanner) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Sequence, &user.Email, &user.Name,
		&user.AccessToken, &user.RefreshToken, &user.TokenType, &user.Scope, &user.TokenExpiry,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if user.AccessToken, err = r.cipher.Open(user.AccessToken); err != nil {
		return nil, err
	}
	if user.RefreshToken, err = r.cipher.Open(user.RefreshToken); err != nil {
		return nil, err
	}
	return &user, nil
}
