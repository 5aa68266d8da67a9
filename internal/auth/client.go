package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/shared"
)

// userTokenSource hands out the user's stored token, refreshing and persisting
// it through the [Manager] once it enters the refresh window.
type userTokenSource struct {
	ctx  context.Context
	m    *Manager
	mu   sync.Mutex
	user *models.User
}

func (s *userTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok := s.user.Token()
	if tok == nil {
		return nil, &shared.RefreshError{Err: shared.ErrNotAuthenticated}
	}

	if s.m.NeedsRefresh(tok) {
		next, err := s.m.RefreshUser(s.ctx, s.user)
		if err != nil {
			return nil, err
		}
		tok = next
	}
	return oauthToken(tok), nil
}

// Client returns an HTTP client authorized as user. The token is refreshed
// on demand and the refreshed token is written back to the store.
func (m *Manager) Client(ctx context.Context, user *models.User) (*http.Client, error) {
	if !user.HasToken() {
		return nil, shared.ErrNotAuthenticated
	}

	src := &userTokenSource{ctx: ctx, m: m, user: user}
	return oauth2.NewClient(m.context(ctx), src), nil
}

// Revoke invalidates the user's grant at the provider and erases the local copy
// along with every session of the user.
//
// A grant the provider no longer knows counts as revoked. A user without a token is left alone.
func (m *Manager) Revoke(ctx context.Context, user *models.User) error {
	tok := user.Token()
	if tok == nil {
		return nil
	}

	value := tok.RefreshToken
	if value == "" {
		value = tok.AccessToken
	}

	if err := m.revokeRemote(ctx, value); err != nil {
		return err
	}

	if err := m.tokens.ClearToken(ctx, user.ID); err != nil {
		return err
	}
	if err := m.sessions.DeleteForUser(ctx, user.ID); err != nil {
		return err
	}

	user.AccessToken, user.RefreshToken, user.TokenExpiry = "", "", 0
	m.logger.Info("grant revoked", "user", user.Email)
	return nil
}

func (m *Manager) revokeRemote(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoints.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRevokeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRevokeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusBadRequest {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error == "invalid_token" {
			m.logger.Debug("token already revoked")
			return nil
		}
	}
	return fmt.Errorf("%w: status %d: %s", shared.ErrRevokeFailed, resp.StatusCode, strings.TrimSpace(string(body)))
}
