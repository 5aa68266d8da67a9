// YouTube Data API [Remote] implementation
//
// Uses google.golang.org/api/youtube/v3 over the caller's authenticated client.
package services

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/shared"
)

// YouTubeService implements [Remote] against the YouTube Data API v3.
type YouTubeService struct {
	endpoint string
	pageSize int64
	logger   *log.Logger
}

// YouTubeOption configures a [YouTubeService].
type YouTubeOption func(*YouTubeService)

// WithEndpoint sends API calls to endpoint instead of the public API root.
func WithEndpoint(endpoint string) YouTubeOption {
	return func(y *YouTubeService) { y.endpoint = endpoint }
}

// WithPageSize sets maxResults, capped at [MaxPageSize].
func WithPageSize(n int) YouTubeOption {
	return func(y *YouTubeService) {
		if n > 0 && n <= MaxPageSize {
			y.pageSize = int64(n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) YouTubeOption {
	return func(y *YouTubeService) { y.logger = l }
}

// NewYouTubeService creates a new YouTube Data API client.
func NewYouTubeService(opts ...YouTubeOption) *YouTubeService {
	y := &YouTubeService{pageSize: MaxPageSize, logger: shared.NewLogger(nil)}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *YouTubeService) service(ctx context.Context, client *http.Client) (*youtube.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if y.endpoint != "" {
		opts = append(opts, option.WithEndpoint(y.endpoint))
	}
	return youtube.NewService(ctx, opts...)
}

// ListPlaylists calls playlists.list(mine=true) and follows nextPageToken until exhausted.
func (y *YouTubeService) ListPlaylists(ctx context.Context, client *http.Client) ([]models.PlaylistRecord, error) {
	svc, err := y.service(ctx, client)
	if err != nil {
		return nil, &shared.RemoteFetchError{Op: "playlists.list", Err: err}
	}

	records := []models.PlaylistRecord{}
	call := svc.Playlists.List([]string{"snippet", "contentDetails"}).Mine(true).MaxResults(y.pageSize)
	err = call.Pages(ctx, func(page *youtube.PlaylistListResponse) error {
		for _, item := range page.Items {
			records = append(records, playlistRecord(item))
		}
		return nil
	})
	if err != nil {
		return nil, &shared.RemoteFetchError{Op: "playlists.list", Err: err}
	}

	y.logger.Debug("listed playlists", "count", len(records))
	return records, nil
}

// ListPlaylistItems calls playlistItems.list for playlistID and follows nextPageToken until exhausted.
func (y *YouTubeService) ListPlaylistItems(ctx context.Context, client *http.Client, playlistID string) ([]models.VideoRecord, error) {
	svc, err := y.service(ctx, client)
	if err != nil {
		return nil, &shared.RemoteFetchError{Op: "playlistItems.list", Err: err}
	}

	records := []models.VideoRecord{}
	call := svc.PlaylistItems.List([]string{"snippet", "contentDetails", "status"}).
		PlaylistId(playlistID).
		MaxResults(y.pageSize)
	err = call.Pages(ctx, func(page *youtube.PlaylistItemListResponse) error {
		for _, item := range page.Items {
			if rec, ok := videoRecord(item); ok {
				records = append(records, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, &shared.RemoteFetchError{Op: "playlistItems.list", Err: err}
	}

	y.logger.Debug("listed playlist items", "playlist_id", playlistID, "count", len(records))
	return records, nil
}

// VideoStatuses calls videos.list(part=status) in chunks of [MaxPageSize] ids.
func (y *YouTubeService) VideoStatuses(ctx context.Context, client *http.Client, videoIDs []string) (map[string]VideoStatus, error) {
	statuses := make(map[string]VideoStatus, len(videoIDs))
	if len(videoIDs) == 0 {
		return statuses, nil
	}

	svc, err := y.service(ctx, client)
	if err != nil {
		return nil, &shared.RemoteFetchError{Op: "videos.list", Err: err}
	}

	for start := 0; start < len(videoIDs); start += MaxPageSize {
		chunk := videoIDs[start:min(start+MaxPageSize, len(videoIDs))]
		resp, err := svc.Videos.List([]string{"status"}).Id(chunk...).Context(ctx).Do()
		if err != nil {
			return nil, &shared.RemoteFetchError{Op: "videos.list", Err: err}
		}
		for _, v := range resp.Items {
			if v.Status == nil {
				continue
			}
			statuses[v.Id] = VideoStatus{UploadStatus: v.Status.UploadStatus, PrivacyStatus: v.Status.PrivacyStatus}
		}
	}
	return statuses, nil
}

func playlistRecord(item *youtube.Playlist) models.PlaylistRecord {
	rec := models.PlaylistRecord{YouTubeID: item.Id}
	if item.Snippet != nil {
		rec.Title = item.Snippet.Title
		rec.Description = item.Snippet.Description
		rec.ThumbnailURL = bestThumbnail(item.Snippet.Thumbnails)
	}
	if item.ContentDetails != nil {
		rec.ItemCount = int(item.ContentDetails.ItemCount)
	}
	return rec
}

// videoRecord maps a playlist item. Items without a video id are skipped.
func videoRecord(item *youtube.PlaylistItem) (models.VideoRecord, bool) {
	var rec models.VideoRecord

	if item.ContentDetails != nil {
		rec.VideoID = item.ContentDetails.VideoId
	}
	if item.Snippet != nil {
		if rec.VideoID == "" && item.Snippet.ResourceId != nil {
			rec.VideoID = item.Snippet.ResourceId.VideoId
		}
		rec.Title = item.Snippet.Title
		rec.Description = item.Snippet.Description
		rec.Position = int(item.Snippet.Position)
		rec.ThumbnailURL = bestThumbnail(item.Snippet.Thumbnails)
	}
	if item.Status != nil {
		rec.Status = item.Status.PrivacyStatus
	}
	return rec, rec.VideoID != ""
}

// bestThumbnail picks maxres, then high, medium and default.
func bestThumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.Maxres, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}
