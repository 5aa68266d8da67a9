// Package session binds browsers to users with an opaque id stored in a cookie.
//
// The id is 32 random bytes in unpadded base64url and maps to a row in the sessions table.
// A second cookie carries the anti-forgery token, which state-changing requests echo
// back in the X-CSRF-Token header.
package session

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/shared"
)

const (
	CookieName     = "session"
	CSRFCookieName = "csrf_token"
	CSRFHeader     = "X-CSRF-Token"

	// Lifetime is how long a session stays valid after login.
	Lifetime = 7 * 24 * time.Hour

	idBytes   = 32
	csrfBytes = 16
)

// Store persists session rows.
type Store interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// Users resolves the owner of a session.
type Users interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// Codec converts between users and session cookies.
type Codec struct {
	sessions Store
	users    Users
	secure   bool
	now      func() time.Time
	logger   *log.Logger
}

// NewCodec creates a [Codec]. Cookies are marked Secure when secure is set.
func NewCodec(sessions Store, users Users, secure bool, logger *log.Logger) *Codec {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Codec{sessions: sessions, users: users, secure: secure, now: time.Now, logger: logger}
}

// Encode opens a session for user and returns it. The session id is the cookie value.
func (c *Codec) Encode(ctx context.Context, user *models.User) (*models.Session, error) {
	id, err := shared.RandomToken(idBytes)
	if err != nil {
		return nil, err
	}
	csrf, err := IssueAntiForgeryToken()
	if err != nil {
		return nil, err
	}

	s := &models.Session{
		ID:        id,
		UserID:    user.ID,
		CSRFToken: csrf,
		ExpiresAt: c.now().Add(Lifetime).UnixMilli(),
	}
	if err := c.sessions.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Decode resolves a cookie value to its session and user.
//
// Empty, malformed, unknown and expired values all yield nil. Expired rows are deleted.
func (c *Codec) Decode(ctx context.Context, value string) (*models.Session, *models.User) {
	if !wellFormed(value) {
		return nil, nil
	}

	s, err := c.sessions.Get(ctx, value)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			c.logger.Warn("session lookup failed", "error", err)
		}
		return nil, nil
	}

	if s.Expired(c.now()) {
		if err := c.sessions.Delete(ctx, s.ID); err != nil {
			c.logger.Warn("failed to delete expired session", "error", err)
		}
		return nil, nil
	}

	user, err := c.users.Get(ctx, s.UserID)
	if err != nil {
		c.logger.Warn("session owner lookup failed", "user_id", s.UserID, "error", err)
		return nil, nil
	}
	return s, user
}

// FromRequest decodes the session cookie of r.
func (c *Codec) FromRequest(r *http.Request) (*models.Session, *models.User) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, nil
	}
	return c.Decode(r.Context(), cookie.Value)
}

// SetCookies writes the session and anti-forgery cookies for s.
func (c *Codec) SetCookies(w http.ResponseWriter, s *models.Session) {
	maxAge := int(time.UnixMilli(s.ExpiresAt).Sub(c.now()) / time.Second)
	if maxAge <= 0 {
		maxAge = int(Lifetime / time.Second)
	}

	http.SetCookie(w, c.cookie(CookieName, s.ID, maxAge, http.SameSiteLaxMode))
	http.SetCookie(w, c.cookie(CSRFCookieName, s.CSRFToken, maxAge, http.SameSiteStrictMode))
}

// Clear expires both cookies.
func (c *Codec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(CookieName, "", -1, http.SameSiteLaxMode))
	http.SetCookie(w, c.cookie(CSRFCookieName, "", -1, http.SameSiteStrictMode))
}

// Destroy deletes the session row and expires the cookies.
func (c *Codec) Destroy(ctx context.Context, w http.ResponseWriter, s *models.Session) error {
	c.Clear(w)
	if s == nil {
		return nil
	}
	return c.sessions.Delete(ctx, s.ID)
}

func (c *Codec) cookie(name, value string, maxAge int, sameSite http.SameSite) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: sameSite,
	}
}

// IssueAntiForgeryToken returns a fresh opaque anti-forgery token.
func IssueAntiForgeryToken() (string, error) {
	return shared.RandomHex(csrfBytes)
}

// ValidateAntiForgeryToken reports whether the request token exactly matches the session's token.
func ValidateAntiForgeryToken(sessionToken, requestToken string) bool {
	if sessionToken == "" || requestToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sessionToken), []byte(requestToken)) == 1
}

func wellFormed(value string) bool {
	if len(value) != base64.RawURLEncoding.EncodedLen(idBytes) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(value)
	return err == nil
}
