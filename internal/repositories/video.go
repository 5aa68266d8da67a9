package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/shared"
)

const videoColumns = `id, video_id, playlist_id, title, description, thumbnail_url, position, status, availability, url, created_at, updated_at`

// VideoRepository persists mirrored playlist items keyed by video id.
type VideoRepository struct {
	q DBTX
}

// NewVideoRepository creates a new [VideoRepository]
func NewVideoRepository(q DBTX) *VideoRepository {
	return &VideoRepository{q: q}
}

// UnavailableVideo is a video that cannot be watched, with the name of its playlist.
type UnavailableVideo struct {
	PlaylistName string `json:"playlistName"`
	*models.Video
}

// Create inserts a new video with a generated ID
func (r *VideoRepository) Create(ctx context.Context, v *models.Video) error {
	if err := v.Validate(); err != nil {
		return persistErr("create video", v.VideoID, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
	}

	now := time.Now().UTC()
	id := shared.GenerateID()

	query := `INSERT INTO videos (` + videoColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, query,
		id, v.VideoID, v.PlaylistID, v.Title, v.Description, v.ThumbnailURL,
		v.Position, v.Status, v.Availability, v.URL, now, now,
	)
	if err != nil {
		return persistErr("create video", v.VideoID, err)
	}

	v.ID = id
	v.CreatedAt = now
	v.UpdatedAt = now
	return nil
}

// Update refreshes the mutable fields of an existing video. The playlist it belongs to never changes.
func (r *VideoRepository) Update(ctx context.Context, v *models.Video) error {
	if err := v.Validate(); err != nil {
		return persistErr("update video", v.VideoID, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
	}

	now := time.Now().UTC()
	query := `
		UPDATE videos
		SET title = ?, description = ?, thumbnail_url = ?, position = ?, status = ?, availability = ?, url = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.q.ExecContext(ctx, query,
		v.Title, v.Description, v.ThumbnailURL, v.Position, v.Status, v.Availability, v.URL, now, v.ID,
	)
	if err != nil {
		return persistErr("update video", v.VideoID, err)
	}
	if err := affected(result, "update video", v.VideoID); err != nil {
		return err
	}

	v.UpdatedAt = now
	return nil
}

// Upsert creates the video or updates the row with the same playlist and video id, keeping its ID.
// A video listed in several playlists has one row per playlist.
func (r *VideoRepository) Upsert(ctx context.Context, v *models.Video) (created bool, err error) {
	existing, err := r.GetInPlaylist(ctx, v.PlaylistID, v.VideoID)
	if errors.Is(err, shared.ErrNotFound) {
		return true, r.Create(ctx, v)
	}
	if err != nil {
		return false, err
	}

	v.ID = existing.ID
	v.CreatedAt = existing.CreatedAt
	return false, r.Update(ctx, v)
}

// GetByVideoID retrieves the oldest row for an external video id
func (r *VideoRepository) GetByVideoID(ctx context.Context, videoID string) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE video_id = ? ORDER BY created_at ASC, id ASC LIMIT 1`
	v, err := scanVideo(r.q.QueryRowContext(ctx, query, videoID))
	if err != nil {
		return nil, persistErr("get video", videoID, err)
	}
	return v, nil
}

// GetInPlaylist retrieves a playlist's row for an external video id
func (r *VideoRepository) GetInPlaylist(ctx context.Context, playlistID, videoID string) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE playlist_id = ? AND video_id = ?`
	v, err := scanVideo(r.q.QueryRowContext(ctx, query, playlistID, videoID))
	if err != nil {
		return nil, persistErr("get video", playlistID+"/"+videoID, err)
	}
	return v, nil
}

// ListByPlaylist returns the videos of a playlist in position order
func (r *VideoRepository) ListByPlaylist(ctx context.Context, playlistID string) ([]*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE playlist_id = ? ORDER BY position ASC, video_id ASC`
	return r.list(ctx, "list videos", playlistID, query, playlistID)
}

// ListByStatus returns videos with the given status across all playlists
func (r *VideoRepository) ListByStatus(ctx context.Context, status string) ([]*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE status = ? ORDER BY playlist_id, position`
	return r.list(ctx, "list videos by status", status, query, status)
}

// ListUnavailable returns the unavailable videos in a user's playlists with each playlist's name.
func (r *VideoRepository) ListUnavailable(ctx context.Context, userID string) ([]UnavailableVideo, error) {
	query := `
		SELECT p.name, v.id, v.video_id, v.playlist_id, v.title, v.description, v.thumbnail_url,
			v.position, v.status, v.availability, v.url, v.created_at, v.updated_at
		FROM videos v
		JOIN playlists p ON p.id = v.playlist_id
		WHERE p.user_id = ? AND v.availability = ?
		ORDER BY p.sequence, v.position
	`
	rows, err := r.q.QueryContext(ctx, query, userID, models.AvailabilityUnavailable)
	if err != nil {
		return nil, persistErr("list unavailable videos", userID, err)
	}
	defer rows.Close()

	result := []UnavailableVideo{}
	for rows.Next() {
		var (
			name string
			v    models.Video
		)
		err := rows.Scan(&name, &v.ID, &v.VideoID, &v.PlaylistID, &v.Title, &v.Description, &v.ThumbnailURL,
			&v.Position, &v.Status, &v.Availability, &v.URL, &v.CreatedAt, &v.UpdatedAt)
		if err != nil {
			return nil, persistErr("list unavailable videos", userID, err)
		}
		result = append(result, UnavailableVideo{PlaylistName: name, Video: &v})
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list unavailable videos", userID, err)
	}
	return result, nil
}

// UpdateStatus sets the status of a video and recomputes its availability.
func (r *VideoRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE videos SET status = ?, availability = ?, updated_at = ? WHERE id = ?`
	result, err := r.q.ExecContext(ctx, query, status, models.AvailabilityFor(status), time.Now().UTC(), id)
	if err != nil {
		return persistErr("update video status", id, err)
	}
	return affected(result, "update video status", id)
}

// DeleteMissing removes the videos of a playlist whose video id is not in keep.
func (r *VideoRepository) DeleteMissing(ctx context.Context, playlistID string, keep []string) (int64, error) {
	query := `DELETE FROM videos WHERE playlist_id = ?`
	args := []any{playlistID}
	if len(keep) > 0 {
		query += ` AND video_id NOT IN (?` + strings.Repeat(`, ?`, len(keep)-1) + `)`
		for _, id := range keep {
			args = append(args, id)
		}
	}

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, persistErr("delete missing videos", playlistID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, persistErr("delete missing videos", playlistID, err)
	}
	return n, nil
}

// Count returns the total number of videos
func (r *VideoRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&count); err != nil {
		return 0, persistErr("count videos", "", err)
	}
	return count, nil
}

func (r *VideoRepository) list(ctx context.Context, op, key, query string, args ...any) ([]*models.Video, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr(op, key, err)
	}
	defer rows.Close()

	videos := []*models.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, persistErr(op, key, err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(op, key, err)
	}
	return videos, nil
}

func scanVideo(row scanner) (*models.Video, error) {
	var v models.Video
	err := row.Scan(
		&v.ID, &v.VideoID, &v.PlaylistID, &v.Title, &v.Description, &v.ThumbnailURL,
		&v.Position, &v.Status, &v.Availability, &v.URL, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
