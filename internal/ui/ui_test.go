package ui

import (
	"strings"
	"testing"

	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/repositories"
	"github.com/desertthunder/tubesync/internal/tasks"
)

func TestPlaylistTable(t *testing.T) {
	out := PlaylistTable([]*models.Playlist{
		{Name: "Music: focus", YouTubeID: "PL1", ItemCount: 12, IsMusicPlaylist: true},
		{Name: "Talks", YouTubeID: "PL2", ItemCount: 3},
	})

	for _, s := range []string{"Name", "Music: focus", "PL1", "12", "Talks", "PL2"} {
		if !strings.Contains(out, s) {
			t.Errorf("table missing %q:\n%s", s, out)
		}
	}
	if strings.Count(out, "♪") != 1 {
		t.Errorf("expected one music marker:\n%s", out)
	}
}

func TestUnavailableTable(t *testing.T) {
	out := UnavailableTable([]repositories.UnavailableVideo{
		{PlaylistName: "Talks", Video: &models.Video{VideoID: "v3", Title: "Gone", Status: "private"}},
	})

	for _, s := range []string{"Playlist", "Talks", "Gone", "v3", "private"} {
		if !strings.Contains(out, s) {
			t.Errorf("table missing %q:\n%s", s, out)
		}
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name   string
		update tasks.ProgressUpdate
		want   string
	}{
		{"with total", tasks.ProgressUpdate{Phase: tasks.FetchItems, Step: 2, Total: 5, Message: "Talks"}, "2/5 Talks"},
		{"without total", tasks.ProgressUpdate{Phase: tasks.FetchPlaylists, Message: "fetching playlists"}, "fetching playlists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Progress(tt.update)
			if !strings.HasSuffix(got, tt.want) {
				t.Errorf("expected suffix %q, got %q", tt.want, got)
			}
			if !strings.Contains(got, tt.update.Phase.String()) {
				t.Errorf("expected phase in %q", got)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	for _, s := range []string{models.StatusPublic, models.StatusProcessing, "private"} {
		if got := Styles.Status(s); !strings.Contains(got, s) {
			t.Errorf("Status(%q) = %q", s, got)
		}
	}
}
