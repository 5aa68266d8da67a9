// package formatter exports stored playlist data to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/repositories"
	"github.com/desertthunder/tubesync/internal/shared"
)

// Kind selects which data set an export describes.
type Kind string

const (
	KindMusic       Kind = "music"       // music playlists with their available videos
	KindUnavailable Kind = "unavailable" // videos that cannot be watched
	KindPlaylist    Kind = "playlist"    // every playlist with every video
)

// Format is an output format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindMusic, KindUnavailable, KindPlaylist:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown export kind %q", shared.ErrInvalidInput, s)
}

// ParseFormat validates a format name. "md" and "txt" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidInput, s)
}

// Extension returns the file extension used for f.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatText:
		return "txt"
	default:
		return "csv"
	}
}

// Export is a set of playlists, each carrying the videos to list.
type Export struct {
	Kind      Kind
	Owner     string
	Playlists []*models.Playlist
}

// VideoCount returns the number of videos across all playlists.
func (e *Export) VideoCount() int {
	n := 0
	for _, p := range e.Playlists {
		n += len(p.Videos)
	}
	return n
}

// Title is the heading used by the Markdown and text formats.
func (e *Export) Title() string {
	switch e.Kind {
	case KindMusic:
		return "Music playlists"
	case KindUnavailable:
		return "Unavailable videos"
	default:
		return "Playlists"
	}
}

// GroupUnavailable turns the flat unavailable listing into playlists, keeping first-seen order.
func GroupUnavailable(videos []repositories.UnavailableVideo) []*models.Playlist {
	var playlists []*models.Playlist
	byName := map[string]*models.Playlist{}

	for _, v := range videos {
		p, ok := byName[v.PlaylistName]
		if !ok {
			p = &models.Playlist{ID: v.PlaylistID, Name: v.PlaylistName}
			byName[v.PlaylistName] = p
			playlists = append(playlists, p)
		}
		p.Videos = append(p.Videos, v.Video)
	}
	return playlists
}

func csvHeaders(kind Kind) []string {
	switch kind {
	case KindMusic:
		return []string{"Playlist Name", "Video Title", "Video ID", "URL"}
	case KindUnavailable:
		return []string{"Playlist Name", "Video Title", "Video ID", "Status"}
	default:
		return []string{"Playlist Name", "Video Title", "Video ID", "Status", "URL"}
	}
}

func csvRecord(kind Kind, p *models.Playlist, v *models.Video) []string {
	switch kind {
	case KindMusic:
		return []string{p.Name, v.Title, v.VideoID, v.URL}
	case KindUnavailable:
		return []string{p.Name, v.Title, v.VideoID, v.Status}
	default:
		return []string{p.Name, v.Title, v.VideoID, v.Status, v.URL}
	}
}

// ExportToCSV writes one row per video. Columns depend on the export kind.
func ExportToCSV(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders(export.Kind)); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, p := range export.Playlists {
		for _, v := range p.Videos {
			if err := writer.Write(csvRecord(export.Kind, p, v)); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a section per playlist with a numbered list of linked videos.
func ExportToMarkdown(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", export.Title()))
	if export.Owner != "" {
		buf.WriteString(fmt.Sprintf("**Owner**: %s\n", export.Owner))
	}
	buf.WriteString(fmt.Sprintf("**Playlists**: %d\n", len(export.Playlists)))
	buf.WriteString(fmt.Sprintf("**Videos**: %d\n", export.VideoCount()))

	for _, p := range export.Playlists {
		buf.WriteString(fmt.Sprintf("\n## %s\n\n", p.Name))
		if p.Description != "" {
			buf.WriteString(fmt.Sprintf("%s\n\n", p.Description))
		}
		if len(p.Videos) == 0 {
			buf.WriteString("_No videos_\n")
			continue
		}
		for i, v := range p.Videos {
			buf.WriteString(fmt.Sprintf("%d. [%s](%s)", i+1, v.Title, v.URL))
			if export.Kind != KindMusic {
				buf.WriteString(fmt.Sprintf(" (%s)", v.Status))
			}
			buf.WriteString("\n")
		}
	}

	return buf.Bytes(), nil
}

// ExportToText renders playlists and videos as plain text
func ExportToText(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%s: %d playlists, %d videos\n", export.Title(), len(export.Playlists), export.VideoCount()))

	for _, p := range export.Playlists {
		buf.WriteString(fmt.Sprintf("\nPlaylist: %s\n", p.Name))
		buf.WriteString(fmt.Sprintf("Videos: %d\n", len(p.Videos)))
		for i, v := range p.Videos {
			buf.WriteString(fmt.Sprintf("%d. %s (%s) [%s]\n", i+1, v.Title, v.VideoID, v.Status))
		}
	}

	return buf.Bytes(), nil
}

// Render dispatches on format.
func Render(export *Export, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatText:
		return ExportToText(export)
	}
	return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidInput, format)
}

// WriteExport renders export and writes it to path.
//
// Defaults to {kind}.{ext} in the working directory.
func WriteExport(export *Export, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s.%s", export.Kind, format.Extension())
	}

	data, err := Render(export, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}
