package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/repositories"
	"github.com/desertthunder/tubesync/internal/shared"
	"github.com/desertthunder/tubesync/internal/tasks"
)

// PlaylistSyncer is implemented by [tasks.Syncer].
type PlaylistSyncer interface {
	Playlists(ctx context.Context, progress chan<- tasks.ProgressUpdate, user *models.User) (*tasks.Result, error)
	ProcessPlaylist(ctx context.Context, progress chan<- tasks.ProgressUpdate, user *models.User, youtubeID string) (int, error)
	MusicPlaylists(ctx context.Context, user *models.User) ([]*models.Playlist, error)
	Unavailable(ctx context.Context, user *models.User) ([]repositories.UnavailableVideo, error)
}

// Meta describes a list response.
type Meta struct {
	Total  int    `json:"total"`
	Source string `json:"source,omitempty"`
}

// ListResponse is the body of a successful list request.
type ListResponse[T any] struct {
	Success bool `json:"success"`
	Data    []T  `json:"data"`
	Meta    Meta `json:"meta"`
}

// PlaylistHandler serves /api/playlists and /api/videos.
type PlaylistHandler struct {
	syncer PlaylistSyncer
	logger *log.Logger
}

// NewPlaylistHandler creates a [PlaylistHandler].
func NewPlaylistHandler(syncer PlaylistSyncer, logger *log.Logger) *PlaylistHandler {
	return &PlaylistHandler{syncer: syncer, logger: logger}
}

// Routes implements [Handler].
func (h *PlaylistHandler) Routes() []Route {
	return []Route{
		{http.MethodGet, "/api/playlists", RequireSession(http.HandlerFunc(h.List))},
		{http.MethodPost, "/api/playlists", chain(http.HandlerFunc(h.Process), RequireSession, RequireCSRF)},
		{http.MethodGet, "/api/playlists/music", RequireSession(http.HandlerFunc(h.Music))},
		{http.MethodGet, "/api/videos/unavailable", RequireSession(http.HandlerFunc(h.Unavailable))},
	}
}

// List handles GET /api/playlists, hydrating from YouTube on the user's first visit.
func (h *PlaylistHandler) List(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	progress, done := h.logProgress(user)
	res, err := h.syncer.Playlists(r.Context(), progress, user)
	done()
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[*models.Playlist]{
		Success: true,
		Data:    res.Playlists,
		Meta:    Meta{Total: len(res.Playlists), Source: res.Source},
	})
}

// Process handles POST /api/playlists with a JSON body {playlistId}.
func (h *PlaylistHandler) Process(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PlaylistID string `json:"playlistId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	body.PlaylistID = strings.TrimSpace(body.PlaylistID)
	if body.PlaylistID == "" {
		writeFailure(w, h.logger, fmt.Errorf("%w: playlistId is required", shared.ErrInvalidInput))
		return
	}

	user := UserFrom(r.Context())
	progress, done := h.logProgress(user)
	count, err := h.syncer.ProcessPlaylist(r.Context(), progress, user, body.PlaylistID)
	done()
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": count})
}

// Music handles GET /api/playlists/music.
func (h *PlaylistHandler) Music(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.syncer.MusicPlaylists(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[*models.Playlist]{
		Success: true,
		Data:    playlists,
		Meta:    Meta{Total: len(playlists)},
	})
}

// Unavailable handles GET /api/videos/unavailable.
func (h *PlaylistHandler) Unavailable(w http.ResponseWriter, r *http.Request) {
	videos, err := h.syncer.Unavailable(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[repositories.UnavailableVideo]{
		Success: true,
		Data:    videos,
		Meta:    Meta{Total: len(videos)},
	})
}

// logProgress returns a channel whose updates are logged at debug level, and
// the function that drains and closes it once the operation returns.
func (h *PlaylistHandler) logProgress(user *models.User) (chan<- tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 16)
	finished := make(chan struct{})
	logger := shared.WithLogger(h.logger, "user", user.Email)

	go func() {
		defer close(finished)
		for u := range progress {
			logger.Debug(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
		}
	}()

	return progress, func() {
		close(progress)
		<-finished
	}
}

// Health handles GET /healthz.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
