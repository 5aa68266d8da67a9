package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"

	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/shared"
)

const (
	// RefreshWindow is how long before expiry a token is refreshed.
	RefreshWindow = 5 * time.Minute

	defaultRevokeURL = "https://oauth2.googleapis.com/revoke"
)

// Scopes requested at consent.
var Scopes = []string{youtube.YoutubeReadonlyScope, "openid", "email", "profile"}

// TokenStore persists the token columns of a user.
type TokenStore interface {
	SaveToken(ctx context.Context, userID string, tok *models.Token) error
	ClearToken(ctx context.Context, userID string) error
}

// SessionStore removes a user's sessions on revoke.
type SessionStore interface {
	DeleteForUser(ctx context.Context, userID string) error
}

// Endpoints overrides the provider URLs. Empty fields keep the Google defaults.
type Endpoints struct {
	AuthURL   string
	TokenURL  string
	RevokeURL string
	// APIBase is the root of the oauth2/v2 API used for tokeninfo and userinfo.
	APIBase string
}

// Manager owns the token lifecycle: validity, refresh, code exchange and revocation.
type Manager struct {
	config     *oauth2.Config
	endpoints  Endpoints
	tokens     TokenStore
	sessions   SessionStore
	httpClient *http.Client
	now        func() time.Time
	logger     *log.Logger
}

// Option configures a [Manager].
type Option func(*Manager)

// WithEndpoints points the manager at other provider URLs.
func WithEndpoints(e Endpoints) Option {
	return func(m *Manager) {
		if e.AuthURL != "" {
			m.config.Endpoint.AuthURL = e.AuthURL
		}
		if e.TokenURL != "" {
			m.config.Endpoint.TokenURL = e.TokenURL
		}
		if e.RevokeURL != "" {
			m.endpoints.RevokeURL = e.RevokeURL
		}
		m.endpoints.APIBase = e.APIBase
	}
}

// WithHTTPClient sets the client used for every provider call.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// WithClock replaces [time.Now].
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a [Manager] for the given OAuth client.
func NewManager(creds *shared.Credentials, tokens TokenStore, sessions SessionStore, opts ...Option) *Manager {
	m := &Manager{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		},
		endpoints:  Endpoints{RevokeURL: defaultRevokeURL},
		tokens:     tokens,
		sessions:   sessions,
		httpClient: http.DefaultClient,
		now:        time.Now,
		logger:     shared.NewLogger(nil),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.endpoints.AuthURL = m.config.Endpoint.AuthURL
	m.endpoints.TokenURL = m.config.Endpoint.TokenURL
	return m
}

// AuthURL returns the consent URL. Offline access with forced consent makes
// the provider issue a refresh token on every login.
func (m *Manager) AuthURL(state string) string {
	return m.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// IsValid reports whether the token has not yet expired.
func (m *Manager) IsValid(tok *models.Token) bool {
	return tok != nil && tok.ExpiryDate > m.now().UnixMilli()
}

// NeedsRefresh reports whether the token expires within [RefreshWindow].
func (m *Manager) NeedsRefresh(tok *models.Token) bool {
	return tok == nil || tok.ExpiryDate < m.now().Add(RefreshWindow).UnixMilli()
}

// Refresh trades the refresh token for a new access token.
//
// Every field the provider does not return is carried over from tok. Only an
// invalid_grant answer is a [shared.RefreshError]; transport failures and other
// provider errors come back as [shared.RemoteFetchError] and leave the grant usable.
func (m *Manager) Refresh(ctx context.Context, tok *models.Token) (*models.Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, &shared.RefreshError{Err: shared.ErrNoRefreshToken}
	}

	fresh, err := m.config.TokenSource(m.context(ctx), &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	if err != nil {
		if rejected(err) {
			return nil, &shared.RefreshError{Err: fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)}
		}
		return nil, &shared.RemoteFetchError{Op: "token.refresh", Err: err}
	}

	next := *tok
	merge(&next, fresh)
	return &next, nil
}

// RefreshUser refreshes a user's token and persists the result.
//
// A rejected refresh clears the stored token so the user has to log in again.
// Any other failure keeps it.
func (m *Manager) RefreshUser(ctx context.Context, user *models.User) (*models.Token, error) {
	next, err := m.Refresh(ctx, user.Token())
	var rerr *shared.RefreshError
	if err != nil && !errors.As(err, &rerr) {
		m.logger.Warn("token refresh failed, keeping stored token", "user", user.Email, "error", err)
		return nil, err
	}
	if err != nil {
		m.logger.Warn("token refresh rejected, clearing stored token", "user", user.Email, "error", err)
		if clearErr := m.tokens.ClearToken(ctx, user.ID); clearErr != nil {
			m.logger.Error("failed to clear token", "user", user.Email, "error", clearErr)
		}
		user.AccessToken, user.RefreshToken, user.TokenExpiry = "", "", 0
		return nil, err
	}

	if err := m.tokens.SaveToken(ctx, user.ID, next); err != nil {
		return nil, err
	}
	user.SetToken(next)
	m.logger.Debug("token refreshed", "user", user.Email, "expiry", next.Expiry())
	return next, nil
}

// rejected reports whether the token endpoint refused the refresh token itself.
func rejected(err error) bool {
	var rerr *oauth2.RetrieveError
	return errors.As(err, &rerr) && rerr.ErrorCode == "invalid_grant"
}

// ExchangeCode trades an authorization code for a token carrying the user's verified email.
//
// Nothing is persisted. The caller stores the user once this succeeds.
func (m *Manager) ExchangeCode(ctx context.Context, code string) (*models.Token, error) {
	t, err := m.config.Exchange(m.context(ctx), code)
	if err != nil {
		return nil, &shared.AuthExchangeError{Err: fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)}
	}
	if t.RefreshToken == "" {
		return nil, &shared.AuthExchangeError{Err: shared.ErrMissingRefreshToken}
	}

	tok := &models.Token{}
	merge(tok, t)

	id := m.resolveIdentity(ctx, t)
	if id.email == "" {
		return nil, &shared.AuthExchangeError{Err: shared.ErrMissingEmail}
	}
	tok.Email = id.email
	tok.Name = id.name
	return tok, nil
}

// context attaches the manager's HTTP client for the oauth2 package.
func (m *Manager) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// merge copies the fields of an oauth2 token onto tok, keeping tok's values where t has none.
func merge(tok *models.Token, t *oauth2.Token) {
	tok.AccessToken = t.AccessToken
	if t.RefreshToken != "" {
		tok.RefreshToken = t.RefreshToken
	}
	if t.TokenType != "" {
		tok.TokenType = t.TokenType
	}
	if scope, ok := t.Extra("scope").(string); ok && scope != "" {
		tok.Scope = scope
	}
	if !t.Expiry.IsZero() {
		tok.ExpiryDate = t.Expiry.UnixMilli()
	}
	tok.ExpiresIn = t.ExpiresIn
}

// oauthToken converts a stored token for the oauth2 transport.
func oauthToken(tok *models.Token) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry(),
	}
}
