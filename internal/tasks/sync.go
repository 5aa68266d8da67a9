package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/repositories"
	"github.com/desertthunder/tubesync/internal/services"
	"github.com/desertthunder/tubesync/internal/shared"
)

const (
	SourceRemote = "remote"
	SourceStore  = "store"
)

// Authorizer hands out HTTP clients that carry a user's access token.
type Authorizer interface {
	Client(ctx context.Context, user *models.User) (*http.Client, error)
}

// Options holds the batch settings used for hydration and playlist processing.
type Options struct {
	BatchSize  int
	MaxRetries int
	Backoff    time.Duration
}

// OptionsFromConfig reads [Options] from the [sync] config section.
func OptionsFromConfig(cfg shared.SyncConfig) Options {
	return Options{
		BatchSize:  cfg.BatchSize,
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.RetryBackoff.Duration,
	}
}

// Result is the answer to a playlist listing and where it came from.
type Result struct {
	Playlists []*models.Playlist
	Source    string // [SourceRemote] after a hydration, [SourceStore] otherwise
}

// Syncer mirrors a user's remote playlists into the store.
type Syncer struct {
	store  *repositories.Store
	remote services.Remote
	auth   Authorizer
	locker Locker
	opts   Options
	logger *log.Logger
}

// NewSyncer creates a [Syncer]. A nil locker falls back to a [MemoryLocker].
func NewSyncer(store *repositories.Store, remote services.Remote, auth Authorizer, locker Locker, opts Options, logger *log.Logger) *Syncer {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Syncer{
		store:  store,
		remote: remote,
		auth:   auth,
		locker: locker,
		opts:   opts,
		logger: shared.WithLogger(logger, "component", "sync"),
	}
}

// Playlists answers from the store once the user has any playlist, and hydrates from the remote API otherwise.
func (s *Syncer) Playlists(ctx context.Context, progress chan<- ProgressUpdate, user *models.User) (*Result, error) {
	if res, err := s.fromStore(ctx, user); res != nil || err != nil {
		return res, err
	}

	unlock, err := s.locker.Lock(ctx, userLockKey(user.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Another request may have hydrated while we waited for the lock.
	if res, err := s.fromStore(ctx, user); res != nil || err != nil {
		return res, err
	}
	return s.hydrate(ctx, progress, user)
}

// Rehydrate re-imports every remote playlist of user, whatever the store holds.
func (s *Syncer) Rehydrate(ctx context.Context, progress chan<- ProgressUpdate, user *models.User) (*Result, error) {
	unlock, err := s.locker.Lock(ctx, userLockKey(user.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.hydrate(ctx, progress, user)
}

// ProcessPlaylist re-syncs the videos of one stored playlist and returns how many it holds.
func (s *Syncer) ProcessPlaylist(ctx context.Context, progress chan<- ProgressUpdate, user *models.User, youtubeID string) (int, error) {
	p, err := s.store.Playlists.GetByYouTubeID(ctx, youtubeID)
	if errors.Is(err, shared.ErrNotFound) || (err == nil && p.UserID != user.ID) {
		return 0, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, youtubeID)
	}
	if err != nil {
		return 0, err
	}

	client, err := s.auth.Client(ctx, user)
	if err != nil {
		return 0, err
	}

	rec := models.PlaylistRecord{
		YouTubeID:    p.YouTubeID,
		Title:        p.Name,
		Description:  p.Description,
		ItemCount:    p.ItemCount,
		ThumbnailURL: p.ThumbnailURL,
	}
	counts, err := ProcessInBatches(ctx, []models.PlaylistRecord{rec},
		func(ctx context.Context, batch []models.PlaylistRecord) ([]int, error) {
			_, n, err := s.syncPlaylist(ctx, progress, client, user, batch[0], 1, 1)
			return []int{n}, err
		},
		s.batchOptions(nil),
	)
	if err != nil {
		return 0, err
	}
	return counts[0], nil
}

// MusicPlaylists returns the user's music playlists with their available videos.
func (s *Syncer) MusicPlaylists(ctx context.Context, user *models.User) ([]*models.Playlist, error) {
	playlists, err := s.store.Playlists.List(ctx, repositories.ListCriteria{UserID: user.ID, MusicOnly: true})
	if err != nil {
		return nil, err
	}

	for _, p := range playlists {
		videos, err := s.store.Videos.ListByPlaylist(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.Videos = make([]*models.Video, 0, len(videos))
		for _, v := range videos {
			if v.Available() {
				p.Videos = append(p.Videos, v)
			}
		}
	}
	return playlists, nil
}

// Unavailable returns the videos in the user's playlists that cannot be watched.
func (s *Syncer) Unavailable(ctx context.Context, user *models.User) ([]repositories.UnavailableVideo, error) {
	return s.store.Videos.ListUnavailable(ctx, user.ID)
}

// fromStore returns nil, nil when the user has no stored playlist yet.
func (s *Syncer) fromStore(ctx context.Context, user *models.User) (*Result, error) {
	count, err := s.store.Playlists.CountByUser(ctx, user.ID)
	if err != nil || count == 0 {
		return nil, err
	}

	playlists, err := s.store.Playlists.List(ctx, repositories.ListCriteria{UserID: user.ID})
	if err != nil {
		return nil, err
	}
	return &Result{Playlists: playlists, Source: SourceStore}, nil
}

func (s *Syncer) hydrate(ctx context.Context, progress chan<- ProgressUpdate, user *models.User) (*Result, error) {
	logger := shared.WithLogger(s.logger, "user", user.Email)

	client, err := s.auth.Client(ctx, user)
	if err != nil {
		return nil, err
	}

	sendProgress(progress, fetchingPlaylistsUpdate())
	records, err := s.remote.ListPlaylists(ctx, client)
	if err != nil {
		return nil, err
	}

	valid := make([]models.PlaylistRecord, 0, len(records))
	for _, rec := range records {
		if rec.YouTubeID == "" || strings.TrimSpace(rec.Title) == "" {
			logger.Debug("skipping playlist without id or title", "playlist_id", rec.YouTubeID)
			continue
		}
		valid = append(valid, rec)
	}
	sendProgress(progress, fetchedPlaylistsUpdate(len(valid)))

	done := 0
	playlists, err := ProcessInBatches(ctx, valid,
		func(ctx context.Context, batch []models.PlaylistRecord) ([]*models.Playlist, error) {
			out := make([]*models.Playlist, 0, len(batch))
			for i, rec := range batch {
				p, _, err := s.syncPlaylist(ctx, progress, client, user, rec, done+i+1, len(valid))
				if err != nil {
					return nil, err
				}
				out = append(out, p)
			}
			return out, nil
		},
		s.batchOptions(func(current, total int) {
			done = current
			sendProgress(progress, storePlaylistsUpdate(current, total))
		}),
	)
	if err != nil {
		logger.Error("hydration failed", "error", err)
		return nil, err
	}

	logger.Info("hydrated playlists", "count", len(playlists))
	return &Result{Playlists: playlists, Source: SourceRemote}, nil
}

// syncPlaylist fetches the items of rec and writes the playlist with its videos in one transaction.
//
// Videos no longer present remotely are removed.
func (s *Syncer) syncPlaylist(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	client *http.Client,
	user *models.User,
	rec models.PlaylistRecord,
	step, total int,
) (*models.Playlist, int, error) {
	unlock, err := s.locker.Lock(ctx, playlistLockKey(rec.YouTubeID))
	if err != nil {
		return nil, 0, err
	}
	defer unlock()

	sendProgress(progress, fetchItemsUpdate(step, total, rec.Title))
	items, err := s.remote.ListPlaylistItems(ctx, client, rec.YouTubeID)
	if err != nil {
		return nil, 0, err
	}

	p := models.NewPlaylist(user.ID, rec)
	var removed int64
	err = s.store.InTx(ctx, func(tx *repositories.Store) error {
		if _, err := tx.Playlists.Upsert(ctx, p); err != nil {
			return err
		}

		keep := make([]string, 0, len(items))
		for _, item := range items {
			if _, err := tx.Videos.Upsert(ctx, models.NewVideo(p.ID, item)); err != nil {
				return err
			}
			keep = append(keep, item.VideoID)
		}

		removed, err = tx.Videos.DeleteMissing(ctx, p.ID, keep)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	s.logger.Debug("synced playlist", "playlist_id", rec.YouTubeID, "videos", len(items), "removed", removed)
	sendProgress(progress, storeVideosUpdate(p, len(items), int(removed)))
	return p, len(items), nil
}

func (s *Syncer) batchOptions(onProgress func(current, total int)) BatchOptions {
	return BatchOptions{
		BatchSize:  s.opts.BatchSize,
		MaxRetries: s.opts.MaxRetries,
		Backoff:    s.opts.Backoff,
		OnProgress: onProgress,
	}
}
