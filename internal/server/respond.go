package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tubesync/internal/shared"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeFailure maps err onto a status and a generic message. Remote and store
// failures are logged in full and reported to the client without detail.
func writeFailure(w http.ResponseWriter, logger *log.Logger, err error) {
	var (
		rerr *shared.RefreshError
		ferr *shared.RemoteFetchError
		perr *shared.PersistenceError
	)

	switch {
	case errors.Is(err, shared.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, shared.ErrPlaylistNotFound), errors.Is(err, shared.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &rerr), errors.Is(err, shared.ErrNotAuthenticated):
		logger.Warn("credentials rejected", "error", err)
		writeError(w, http.StatusUnauthorized, "unauthorized", "session expired, login again")
	case errors.Is(err, shared.ErrLocked):
		writeError(w, http.StatusConflict, "busy", "a sync for this playlist is already running")
	case errors.As(err, &ferr):
		logger.Error("remote fetch failed", "op", ferr.Op, "error", err)
		writeError(w, http.StatusInternalServerError, "remote_error", "failed to fetch from YouTube")
	case errors.As(err, &perr):
		logger.Error("persistence failed", "op", perr.Op, "key", perr.Key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to save data")
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
