package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/repositories"
	"github.com/desertthunder/tubesync/internal/tasks"
)

var (
	headerStyle = NewBold("#7D56F4").Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = NewStyle("#626262")
)

// Status colors a video status: green when watchable, orange while processing, red otherwise.
func (p *Palette) Status(status string) string {
	switch status {
	case models.StatusPublic:
		return p.OK(status)
	case models.StatusProcessing:
		return p.Warn(status)
	default:
		return p.Err(status)
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// PlaylistTable renders playlists with their item counts and music flag.
func PlaylistTable(playlists []*models.Playlist) string {
	t := newTable("#", "Name", "YouTube ID", "Items", "Music")
	for i, p := range playlists {
		music := ""
		if p.IsMusicPlaylist {
			music = "♪"
		}
		t.Row(strconv.Itoa(i+1), p.Name, p.YouTubeID, strconv.Itoa(p.ItemCount), music)
	}
	return t.String()
}

// UnavailableTable renders unavailable videos with their playlist and colored status.
func UnavailableTable(videos []repositories.UnavailableVideo) string {
	t := newTable("Playlist", "Title", "Video ID", "Status")
	for _, v := range videos {
		t.Row(v.PlaylistName, v.Title, v.VideoID, Styles.Status(v.Status))
	}
	return t.String()
}

// Progress formats a sync update as a single line.
func Progress(u tasks.ProgressUpdate) string {
	prefix := Styles.Help(fmt.Sprintf("[%s]", u.Phase))
	if u.Total > 0 {
		return fmt.Sprintf("%s %d/%d %s", prefix, u.Step, u.Total, u.Message)
	}
	return fmt.Sprintf("%s %s", prefix, u.Message)
}
