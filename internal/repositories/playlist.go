package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/shared"
)

const playlistColumns = `id, sequence, youtube_id, user_id, name, description, item_count, thumbnail_url, is_music_playlist, created_at, updated_at`

// PlaylistRepository persists mirrored playlists keyed by their YouTube id.
type PlaylistRepository struct {
	q DBTX
}

// NewPlaylistRepository creates a new PlaylistRepository with the given connection
func NewPlaylistRepository(q DBTX) *PlaylistRepository {
	return &PlaylistRepository{q: q}
}

// ListCriteria narrows [PlaylistRepository.List].
type ListCriteria struct {
	UserID    string
	MusicOnly bool
}

// Create inserts a new playlist with generated ID and sequence
func (r *PlaylistRepository) Create(ctx context.Context, p *models.Playlist) error {
	if err := p.Validate(); err != nil {
		return persistErr("create playlist", p.YouTubeID, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
	}

	sequence, err := NextSequence(ctx, r.q, "playlists")
	if err != nil {
		return persistErr("create playlist", p.YouTubeID, err)
	}

	now := time.Now().UTC()
	id := shared.GenerateID()

	query := `
		INSERT INTO playlists (` + playlistColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.q.ExecContext(ctx, query,
		id, sequence, p.YouTubeID, p.UserID, p.Name, p.Description,
		p.ItemCount, p.ThumbnailURL, p.IsMusicPlaylist, now, now,
	)
	if err != nil {
		return persistErr("create playlist", p.YouTubeID, err)
	}

	p.ID = id
	p.Sequence = sequence
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// Update refreshes the mutable fields of an existing playlist and its updated_at timestamp.
//
// The owner and primary key never change.
func (r *PlaylistRepository) Update(ctx context.Context, p *models.Playlist) error {
	if err := p.Validate(); err != nil {
		return persistErr("update playlist", p.YouTubeID, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
	}

	now := time.Now().UTC()
	query := `
		UPDATE playlists
		SET name = ?, description = ?, item_count = ?, thumbnail_url = ?, is_music_playlist = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.q.ExecContext(ctx, query,
		p.Name, p.Description, p.ItemCount, p.ThumbnailURL, p.IsMusicPlaylist, now, p.ID,
	)
	if err != nil {
		return persistErr("update playlist", p.YouTubeID, err)
	}
	if err := affected(result, "update playlist", p.YouTubeID); err != nil {
		return err
	}

	p.UpdatedAt = now
	return nil
}

// Upsert creates the playlist or updates the row with the same YouTube id.
//
// On update p receives the stored ID, sequence, owner and created_at.
func (r *PlaylistRepository) Upsert(ctx context.Context, p *models.Playlist) (created bool, err error) {
	existing, err := r.GetByYouTubeID(ctx, p.YouTubeID)
	if errors.Is(err, shared.ErrNotFound) {
		return true, r.Create(ctx, p)
	}
	if err != nil {
		return false, err
	}

	p.ID = existing.ID
	p.Sequence = existing.Sequence
	p.UserID = existing.UserID
	p.CreatedAt = existing.CreatedAt
	return false, r.Update(ctx, p)
}

// Get retrieves a playlist by ID
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ?`
	p, err := scanPlaylist(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, persistErr("get playlist", id, err)
	}
	return p, nil
}

// GetByYouTubeID retrieves a playlist by its external id
func (r *PlaylistRepository) GetByYouTubeID(ctx context.Context, youtubeID string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE youtube_id = ?`
	p, err := scanPlaylist(r.q.QueryRowContext(ctx, query, youtubeID))
	if err != nil {
		return nil, persistErr("get playlist", youtubeID, err)
	}
	return p, nil
}

// CountByUser returns how many playlists a user owns.
func (r *PlaylistRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM playlists WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return 0, persistErr("count playlists", userID, err)
	}
	return count, nil
}

// List retrieves playlists matching the criteria in sequence order
func (r *PlaylistRepository) List(ctx context.Context, criteria ListCriteria) ([]*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE 1 = 1`
	args := []any{}

	if criteria.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, criteria.UserID)
	}
	if criteria.MusicOnly {
		query += " AND is_music_playlist = 1"
	}
	query += " ORDER BY sequence ASC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr("list playlists", criteria.UserID, err)
	}
	defer rows.Close()

	playlists := []*models.Playlist{}
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, persistErr("list playlists", criteria.UserID, err)
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list playlists", criteria.UserID, err)
	}
	return playlists, nil
}

// Delete removes a playlist and, by cascade, its videos
func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return persistErr("delete playlist", id, err)
	}
	return affected(result, "delete playlist", id)
}

func scanPlaylist(row scanner) (*models.Playlist, error) {
	var p models.Playlist
	err := row.Scan(
		&p.ID, &p.Sequence, &p.YouTubeID, &p.UserID, &p.Name, &p.Description,
		&p.ItemCount, &p.ThumbnailURL, &p.IsMusicPlaylist, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
