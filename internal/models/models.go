// package models defines the data model for the playlist mirror service
package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	// WatchURLPrefix is prepended to a video id to build its public URL.
	WatchURLPrefix = "https://www.youtube.com/watch?v="

	AvailabilityAvailable   = "available"
	AvailabilityUnavailable = "unavailable"

	StatusPublic = "public"
	// StatusProcessing marks a video whose upload the stuck-video poller re-checks.
	StatusProcessing = "processing"
	// StatusDeleted marks a video the remote API no longer returns.
	StatusDeleted = "deleted"

	musicMarker = "music:"
)

// Model is implemented by every persisted entity.
type Model interface {
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

// Token is an OAuth2 access/refresh credential pair plus metadata.
//
// ExpiryDate is absolute epoch milliseconds.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiryDate   int64  `json:"expiry_date"`
	ExpiresIn    int64  `json:"expires_in"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
}

// Expiry returns ExpiryDate as a [time.Time].
func (t *Token) Expiry() time.Time {
	return time.UnixMilli(t.ExpiryDate)
}

// User is an account identified by email, carrying the fields of its latest [Token].
type User struct {
	ID           string    `json:"id"`
	Sequence     int       `json:"-"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"-"`
	Scope        string    `json:"-"`
	TokenExpiry  int64     `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Validate implements [Model].
func (u *User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if !strings.Contains(u.Email, "@") {
		return fmt.Errorf("invalid email: %s", u.Email)
	}
	return nil
}

// HasToken reports whether the user holds an access token.
func (u *User) HasToken() bool {
	return u.AccessToken != ""
}

// Token returns the stored token fields, or nil when the user has none.
func (u *User) Token() *Token {
	if !u.HasToken() {
		return nil
	}
	tok := &Token{
		AccessToken:  u.AccessToken,
		RefreshToken: u.RefreshToken,
		TokenType:    u.TokenType,
		Scope:        u.Scope,
		ExpiryDate:   u.TokenExpiry,
		Email:        u.Email,
		Name:         u.Name,
	}
	if remaining := time.Until(tok.Expiry()); remaining > 0 {
		tok.ExpiresIn = int64(remaining / time.Second)
	}
	return tok
}

// SetToken copies the token fields onto the user.
//
// An empty refresh token keeps the one already stored.
func (u *User) SetToken(t *Token) {
	u.AccessToken = t.AccessToken
	if t.RefreshToken != "" {
		u.RefreshToken = t.RefreshToken
	}
	u.TokenType = t.TokenType
	u.Scope = t.Scope
	u.TokenExpiry = t.ExpiryDate
}

// Session binds an opaque id to a user until ExpiresAt (epoch milliseconds).
type Session struct {
	ID        string
	UserID    string
	CSRFToken string
	ExpiresAt int64
	CreatedAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.UnixMilli()
}

// Playlist is a mirrored remote playlist. YouTubeID is the upsert key.
type Playlist struct {
	ID              string    `json:"id"`
	Sequence        int       `json:"-"`
	YouTubeID       string    `json:"youtubeId"`
	UserID          string    `json:"userId"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	ItemCount       int       `json:"itemCount"`
	ThumbnailURL    string    `json:"thumbnailUrl"`
	IsMusicPlaylist bool      `json:"isMusicPlaylist"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Videos          []*Video  `json:"videos,omitempty"`
}

// Validate implements [Model].
func (p *Playlist) Validate() error {
	if p.YouTubeID == "" {
		return fmt.Errorf("youtube id is required")
	}
	if p.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("playlist name is required")
	}
	return nil
}

// Video is a mirrored playlist item. VideoID is the upsert key.
type Video struct {
	ID           string    `json:"id"`
	VideoID      string    `json:"videoId"`
	PlaylistID   string    `json:"playlistId"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	Position     int       `json:"position"`
	Status       string    `json:"status"`
	Availability string    `json:"availability"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Validate implements [Model].
func (v *Video) Validate() error {
	if v.VideoID == "" {
		return fmt.Errorf("video id is required")
	}
	if v.PlaylistID == "" {
		return fmt.Errorf("playlist id is required")
	}
	return nil
}

// Available reports whether the video can be watched publicly.
func (v *Video) Available() bool {
	return v.Availability == AvailabilityAvailable
}

// PlaylistRecord is a playlist as returned by the remote API.
type PlaylistRecord struct {
	YouTubeID    string
	Title        string
	Description  string
	ItemCount    int
	ThumbnailURL string
}

// VideoRecord is a playlist item as returned by the remote API.
type VideoRecord struct {
	VideoID      string
	Title        string
	Description  string
	ThumbnailURL string
	Position     int
	Status       string
}

// IsMusicTitle reports whether a playlist title marks it as a music playlist.
func IsMusicTitle(title string) bool {
	return strings.Contains(strings.ToLower(title), musicMarker)
}

// AvailabilityFor derives availability from a privacy status: only "public" is available.
func AvailabilityFor(status string) string {
	if strings.ToLower(status) == StatusPublic {
		return AvailabilityAvailable
	}
	return AvailabilityUnavailable
}

// WatchURL returns the public watch URL for a video id.
func WatchURL(videoID string) string {
	return WatchURLPrefix + videoID
}

// NewPlaylist maps a remote record onto a playlist owned by userID.
func NewPlaylist(userID string, r PlaylistRecord) *Playlist {
	return &Playlist{
		YouTubeID:       r.YouTubeID,
		UserID:          userID,
		Name:            r.Title,
		Description:     r.Description,
		ItemCount:       r.ItemCount,
		ThumbnailURL:    r.ThumbnailURL,
		IsMusicPlaylist: IsMusicTitle(r.Title),
	}
}

// NewVideo maps a remote record onto a video belonging to playlistID.
func NewVideo(playlistID string, r VideoRecord) *Video {
	return &Video{
		VideoID:      r.VideoID,
		PlaylistID:   playlistID,
		Title:        r.Title,
		Description:  r.Description,
		ThumbnailURL: r.ThumbnailURL,
		Position:     r.Position,
		Status:       r.Status,
		Availability: AvailabilityFor(r.Status),
		URL:          WatchURL(r.VideoID),
	}
}
