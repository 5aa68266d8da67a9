// package services defines the [Remote] playlist source and implements it for the YouTube Data API
package services

import (
	"context"
	"net/http"

	"github.com/desertthunder/tubesync/internal/models"
)

// MaxPageSize is the largest page the provider returns per list call.
const MaxPageSize = 50

// Remote lists a user's playlists and their items from the video platform.
//
// Every call takes the user's authenticated [http.Client]. Listings drain every page
// before returning, and any provider error discards what was fetched so far.
type Remote interface {
	// ListPlaylists returns every playlist owned by the caller, in page order.
	ListPlaylists(ctx context.Context, client *http.Client) ([]models.PlaylistRecord, error)

	// ListPlaylistItems returns every item of a playlist, in page order.
	ListPlaylistItems(ctx context.Context, client *http.Client, playlistID string) ([]models.VideoRecord, error)

	// VideoStatuses returns the current status of each video id the provider still knows.
	VideoStatuses(ctx context.Context, client *http.Client, videoIDs []string) (map[string]VideoStatus, error)
}

// VideoStatus is the processing and privacy state of an uploaded video.
type VideoStatus struct {
	UploadStatus  string
	PrivacyStatus string
}

// Resolved returns the status to store. A processed upload resolves to its privacy
// status, an upload still in flight to [models.StatusProcessing], anything else to
// its upload status ("failed", "rejected", "deleted").
func (s VideoStatus) Resolved() string {
	switch s.UploadStatus {
	case "processed":
		if s.PrivacyStatus != "" {
			return s.PrivacyStatus
		}
		return s.UploadStatus
	case "uploaded", "":
		return models.StatusProcessing
	default:
		return s.UploadStatus
	}
}
