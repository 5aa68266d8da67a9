package tasks

import (
	"fmt"

	"github.com/desertthunder/tubesync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or server log for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylists Phase = iota
	StorePlaylists
	FetchItems
	StoreVideos
	PollStatus
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylists:
		return "fetch_playlists"
	case StorePlaylists:
		return "store_playlists"
	case FetchItems:
		return "fetch_items"
	case StoreVideos:
		return "store_videos"
	case PollStatus:
		return "poll_status"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}

func fetchingPlaylistsUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    0,
		Total:   1,
		Message: "Fetching playlists from YouTube...",
	}
}

func fetchedPlaylistsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d playlists", count),
	}
}

func storePlaylistsUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   StorePlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Playlists stored", step, total),
	}
}

func fetchItemsUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchItems,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching videos of %s...", name),
	}
}

func storeVideosUpdate(p *models.Playlist, count, removed int) ProgressUpdate {
	msg := fmt.Sprintf("✓ %s (%d videos)", p.Name, count)
	if removed > 0 {
		msg = fmt.Sprintf("✓ %s (%d videos, %d removed)", p.Name, count, removed)
	}
	return ProgressUpdate{
		Phase:   StoreVideos,
		Step:    count,
		Total:   count,
		Message: msg,
		Data:    p,
	}
}

func pollStatusUpdate(step, total, updated int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PollStatus,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] owners checked, %d videos updated", step, total, updated),
	}
}
