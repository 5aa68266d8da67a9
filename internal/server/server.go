package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tubesync/internal/session"
	"github.com/desertthunder/tubesync/internal/shared"
)

// ShutdownTimeout bounds how long in-flight requests may run after shutdown starts.
var ShutdownTimeout = 10 * time.Second

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Route binds a method and path to a handler.
type Route struct {
	Method  string
	Path    string
	Handler http.Handler
}

// Handler groups the routes of one area of the API (auth, playlists).
type Handler interface {
	Routes() []Route // Routes returns the method/path pairs this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers every route of a Handler
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Server is the HTTP API: router, middleware stack and the underlying [http.Server].
type Server struct {
	router *BasicRouter
	inner  *http.Server
	logger *log.Logger
}

// New assembles the API.
//
// Middleware order is recover, request logger, CORS, session loading. Rate limits
// and the session and CSRF requirements are attached per route.
func New(cfg shared.ServerConfig, authn Authenticator, users UserStore, codec *session.Codec, syncer PlaylistSyncer, logger *log.Logger) *Server {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "component", "server")

	r := NewBasicRouter()
	r.Use(
		Recover(logger),
		RequestLogger(logger),
		CORS(cfg.AllowedOrigin),
		LoadSession(codec),
	)

	r.Handler(NewAuthHandler(authn, users, codec, cfg, logger))
	r.Handler(NewPlaylistHandler(syncer, logger))
	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(Health))
	r.NotFound(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("no route for %s", req.URL.Path))
	}))

	return &Server{
		router: r,
		inner: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.inner.Addr
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.inner.Addr)
		errCh <- s.inner.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := s.inner.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
