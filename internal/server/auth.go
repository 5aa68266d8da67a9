package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/session"
	"github.com/desertthunder/tubesync/internal/shared"
)

const (
	StateCookieName = "oauth_state"
	stateBytes      = 16
	stateMaxAge     = 10 * 60
)

// Login failure codes sent to the frontend as /login?error=<code>.
const (
	errMissingCode         = "missing_code"
	errInvalidState        = "invalid_state"
	errMissingEmail        = "missing_email"
	errMissingRefreshToken = "missing_refresh_token"
	errExchangeFailed      = "exchange_failed"
)

// Authenticator is the part of the token lifecycle the HTTP layer drives.
type Authenticator interface {
	AuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*models.Token, error)
	Revoke(ctx context.Context, user *models.User) error
}

// UserStore persists users after a successful login.
type UserStore interface {
	Upsert(ctx context.Context, user *models.User) error
}

// AuthHandler serves /api/auth/*.
type AuthHandler struct {
	authn  Authenticator
	users  UserStore
	codec  *session.Codec
	cfg    shared.ServerConfig
	logger *log.Logger

	statusLimit   *RateLimiter
	urlLimit      *RateLimiter
	callbackLimit *RateLimiter
}

// NewAuthHandler creates an [AuthHandler] with its per-route rate limits.
func NewAuthHandler(authn Authenticator, users UserStore, codec *session.Codec, cfg shared.ServerConfig, logger *log.Logger) *AuthHandler {
	return &AuthHandler{
		authn:         authn,
		users:         users,
		codec:         codec,
		cfg:           cfg,
		logger:        logger,
		statusLimit:   NewRateLimiter(5),
		urlLimit:      NewRateLimiter(2),
		callbackLimit: NewRateLimiter(3),
	}
}

// Routes implements [Handler].
func (h *AuthHandler) Routes() []Route {
	protected := []Middleware{RequireSession, RequireCSRF}
	return []Route{
		{http.MethodGet, "/api/auth/url", chain(http.HandlerFunc(h.URL), h.urlLimit.Middleware)},
		{http.MethodGet, "/api/auth/callback", chain(http.HandlerFunc(h.CallbackRedirect), h.callbackLimit.Middleware)},
		{http.MethodPost, "/api/auth/callback", chain(http.HandlerFunc(h.Callback), h.callbackLimit.Middleware)},
		{http.MethodGet, "/api/auth/status", chain(http.HandlerFunc(h.Status), h.statusLimit.Middleware)},
		{http.MethodPost, "/api/auth/logout", chain(http.HandlerFunc(h.Logout), protected...)},
		{http.MethodPost, "/api/auth/revoke", chain(http.HandlerFunc(h.Revoke), protected...)},
	}
}

// URL handles GET /api/auth/url. The state is kept in a short-lived cookie
// and checked when the provider redirects back.
func (h *AuthHandler) URL(w http.ResponseWriter, r *http.Request) {
	state, err := shared.RandomToken(stateBytes)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/api/auth",
		MaxAge:   stateMaxAge,
		HttpOnly: true,
		Secure:   h.cfg.Production,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"url": h.authn.AuthURL(state)})
}

// CallbackRedirect handles the provider's GET redirect. It always ends in a
// redirect: to the frontend on success, to /login?error=<code> otherwise.
func (h *AuthHandler) CallbackRedirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.clearState(w)

	if reason := q.Get("error"); reason != "" {
		h.logger.Warn("authorization denied", "error", reason)
		h.redirectLogin(w, r, reason)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.redirectLogin(w, r, errMissingCode)
		return
	}

	cookie, err := r.Cookie(StateCookieName)
	if err != nil || cookie.Value == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(q.Get("state"))) != 1 {
		h.logger.Warn("callback state mismatch")
		h.redirectLogin(w, r, errInvalidState)
		return
	}

	if reason, err := h.login(r.Context(), w, code); err != nil {
		h.redirectLogin(w, r, reason)
		return
	}
	http.Redirect(w, r, h.frontendURL(), http.StatusFound)
}

// Callback handles POST /api/auth/callback with a JSON body {code}.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if body.Code == "" {
		writeError(w, http.StatusBadRequest, errMissingCode, "no authorization code provided")
		return
	}

	reason, err := h.login(r.Context(), w, body.Code)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case reason == errExchangeFailed:
		writeError(w, http.StatusUnauthorized, reason, "failed to exchange code for tokens")
	case reason == errMissingEmail || reason == errMissingRefreshToken:
		writeError(w, http.StatusBadRequest, reason, err.Error())
	default:
		writeFailure(w, h.logger, err)
	}
}

// login exchanges code, stores the user and opens a session.
// On failure it returns the login error code for the frontend.
func (h *AuthHandler) login(ctx context.Context, w http.ResponseWriter, code string) (string, error) {
	tok, err := h.authn.ExchangeCode(ctx, code)
	if err != nil {
		reason := errExchangeFailed
		switch {
		case errors.Is(err, shared.ErrMissingEmail):
			reason = errMissingEmail
		case errors.Is(err, shared.ErrMissingRefreshToken):
			reason = errMissingRefreshToken
		}
		h.logger.Warn("code exchange failed", "reason", reason, "error", err)
		return reason, err
	}

	user := &models.User{Email: tok.Email, Name: tok.Name}
	user.SetToken(tok)
	if err := h.users.Upsert(ctx, user); err != nil {
		h.logger.Error("failed to store user", "email", tok.Email, "error", err)
		return "internal_error", err
	}

	s, err := h.codec.Encode(ctx, user)
	if err != nil {
		h.logger.Error("failed to open session", "email", tok.Email, "error", err)
		return "internal_error", err
	}
	h.codec.SetCookies(w, s)

	h.logger.Info("user logged in", "email", user.Email)
	return "", nil
}

// Status handles GET /api/auth/status. Authenticated answers carry the session's CSRF token.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	if user == nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	body := map[string]any{
		"authenticated": true,
		"user":          map[string]string{"email": user.Email, "name": user.Name},
	}
	// csrf_token is HttpOnly; the frontend reads the value it must echo from here.
	if s := SessionFrom(r.Context()); s != nil {
		body["csrfToken"] = s.CSRFToken
	}
	writeJSON(w, http.StatusOK, body)
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.codec.Destroy(r.Context(), w, SessionFrom(r.Context())); err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Revoke handles POST /api/auth/revoke: the provider grant and every session of the user go away.
func (h *AuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	if err := h.authn.Revoke(r.Context(), user); err != nil {
		if errors.Is(err, shared.ErrRevokeFailed) {
			h.logger.Error("revoke failed", "email", user.Email, "error", err)
			writeError(w, http.StatusBadGateway, "revoke_failed", "the provider refused to revoke the token")
			return
		}
		writeFailure(w, h.logger, err)
		return
	}

	h.codec.Clear(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) clearState(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Production,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) frontendURL() string {
	if h.cfg.FrontendURL == "" {
		return "/"
	}
	return h.cfg.FrontendURL
}

// redirectLogin sends the browser to the frontend's login page on the same origin as frontend_url.
func (h *AuthHandler) redirectLogin(w http.ResponseWriter, r *http.Request, reason string) {
	target := url.URL{Path: "/login", RawQuery: url.Values{"error": {reason}}.Encode()}
	if u, err := url.Parse(h.cfg.FrontendURL); err == nil && u.Host != "" {
		target.Scheme = u.Scheme
		target.Host = u.Host
	}
	http.Redirect(w, r, target.String(), http.StatusFound)
}
