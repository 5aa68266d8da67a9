package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what the fake provider knows about the owner of an access token.
type Identity struct {
	Email    string
	Name     string
	Verified bool
}

// Grant is the token endpoint's answer to an authorization code.
type Grant struct {
	AccessToken  string
	RefreshToken string
	// IDToken carries Identity as an id_token claim set when non-nil.
	IDToken *Identity
}

// ItemFixture is a playlist item served by the fake YouTube Data API.
type ItemFixture struct {
	VideoID      string
	Title        string
	Status       string
	UploadStatus string
}

// PlaylistFixture is a playlist served by the fake YouTube Data API.
type PlaylistFixture struct {
	ID    string
	Title string
	Items []ItemFixture
}

// Provider is an httptest server standing in for the OAuth endpoints,
// the oauth2/v2 identity API and the YouTube Data API.
//
// Point clients at it with [Provider.TokenURL], [Provider.RevokeURL] and [Provider.APIBase].
type Provider struct {
	*httptest.Server

	mu sync.Mutex
	// Grants maps authorization codes to token responses.
	Grants map[string]Grant
	// Refreshes maps refresh tokens to the access token issued on refresh.
	// A refresh token missing from the map is rejected with invalid_grant.
	Refreshes map[string]string
	// TokenInfo and UserInfo map access tokens to identities.
	TokenInfo map[string]Identity
	UserInfo  map[string]Identity
	// Revoked records every token posted to the revoke endpoint.
	Revoked []string
	// UnknownTokens are answered with 400 invalid_token on revoke.
	UnknownTokens map[string]bool
	// Playlists is served for every authorized caller.
	Playlists []PlaylistFixture
	// Fail makes the named API path ("playlists", "playlistItems", "videos") answer 500.
	// "token" makes refresh grants answer 503.
	Fail map[string]bool
	// Calls counts requests per path.
	Calls map[string]int
	// ExpiresIn is returned with every issued token.
	ExpiresIn int
}

// NewProvider starts a fake provider that is closed when the test ends.
func NewProvider(t *testing.T) *Provider {
	t.Helper()

	p := &Provider{
		Grants:        map[string]Grant{},
		Refreshes:     map[string]string{},
		TokenInfo:     map[string]Identity{},
		UserInfo:      map[string]Identity{},
		UnknownTokens: map[string]bool{},
		Fail:          map[string]bool{},
		Calls:         map[string]int{},
		ExpiresIn:     3600,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", p.token)
	mux.HandleFunc("/revoke", p.revoke)
	mux.HandleFunc("/oauth2/v2/tokeninfo", p.tokenInfo)
	mux.HandleFunc("/oauth2/v2/userinfo", p.userInfo)
	mux.HandleFunc("/youtube/v3/playlists", p.playlists)
	mux.HandleFunc("/youtube/v3/playlistItems", p.playlistItems)
	mux.HandleFunc("/youtube/v3/videos", p.videos)

	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

func (p *Provider) TokenURL() string  { return p.URL + "/token" }
func (p *Provider) RevokeURL() string { return p.URL + "/revoke" }
func (p *Provider) AuthURL() string   { return p.URL + "/auth" }

// APIBase is the root URL for google.golang.org/api clients.
func (p *Provider) APIBase() string { return p.URL + "/" }

// CallCount returns how many requests hit the named path.
func (p *Provider) CallCount(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls[path]
}

// RevokedTokens returns a copy of the revoked tokens.
func (p *Provider) RevokedTokens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Revoked...)
}

func (p *Provider) count(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls[path]++
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	p.count("token")
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		grant, ok := p.Grants[r.PostForm.Get("code")]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		body := map[string]any{
			"access_token": grant.AccessToken,
			"token_type":   "Bearer",
			"expires_in":   p.ExpiresIn,
			"scope":        "https://www.googleapis.com/auth/youtube.readonly openid email profile",
		}
		if grant.RefreshToken != "" {
			body["refresh_token"] = grant.RefreshToken
		}
		if grant.IDToken != nil {
			body["id_token"] = IDToken(*grant.IDToken)
		}
		writeJSON(w, http.StatusOK, body)
	case "refresh_token":
		if p.Fail["token"] {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backend_error"})
			return
		}
		access, ok := p.Refreshes[r.PostForm.Get("refresh_token")]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": access,
			"token_type":   "Bearer",
			"expires_in":   p.ExpiresIn,
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (p *Provider) revoke(w http.ResponseWriter, r *http.Request) {
	p.count("revoke")
	_ = r.ParseForm()
	tok := r.PostForm.Get("token")

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.UnknownTokens[tok] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_token"})
		return
	}
	if p.Fail["revoke"] {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "backend_error"})
		return
	}
	p.Revoked = append(p.Revoked, tok)
	w.WriteHeader(http.StatusOK)
}

func (p *Provider) tokenInfo(w http.ResponseWriter, r *http.Request) {
	p.count("tokeninfo")
	_ = r.ParseForm()

	p.mu.Lock()
	id, ok := p.TokenInfo[r.Form.Get("access_token")]
	p.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"code": 400, "message": "invalid token"}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"email": id.Email, "verified_email": id.Verified})
}

func (p *Provider) userInfo(w http.ResponseWriter, r *http.Request) {
	p.count("userinfo")

	p.mu.Lock()
	id, ok := p.UserInfo[bearer(r)]
	p.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"code": 401, "message": "unauthorized"}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"email": id.Email, "name": id.Name, "verified_email": id.Verified})
}

func (p *Provider) playlists(w http.ResponseWriter, r *http.Request) {
	p.count("playlists")
	if p.rejected(w, r, "playlists") {
		return
	}

	p.mu.Lock()
	fixtures := append([]PlaylistFixture(nil), p.Playlists...)
	p.mu.Unlock()

	start, end, next := page(r, len(fixtures))
	items := []map[string]any{}
	for _, pl := range fixtures[start:end] {
		items = append(items, map[string]any{
			"id": pl.ID,
			"snippet": map[string]any{
				"title":       pl.Title,
				"description": pl.Title + " description",
				"thumbnails": map[string]any{
					"default": map[string]any{"url": "https://i.ytimg.com/" + pl.ID + "/default.jpg"},
					"high":    map[string]any{"url": "https://i.ytimg.com/" + pl.ID + "/high.jpg"},
				},
			},
			"contentDetails": map[string]any{"itemCount": len(pl.Items)},
		})
	}
	writeJSON(w, http.StatusOK, pageBody("youtube#playlistListResponse", items, next))
}

func (p *Provider) playlistItems(w http.ResponseWriter, r *http.Request) {
	p.count("playlistItems")
	if p.rejected(w, r, "playlistItems") {
		return
	}

	var fixture *PlaylistFixture
	p.mu.Lock()
	for i := range p.Playlists {
		if p.Playlists[i].ID == r.URL.Query().Get("playlistId") {
			fixture = &p.Playlists[i]
		}
	}
	p.mu.Unlock()

	if fixture == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": 404, "message": "playlistNotFound"}})
		return
	}

	start, end, next := page(r, len(fixture.Items))
	items := []map[string]any{}
	for i, it := range fixture.Items[start:end] {
		items = append(items, map[string]any{
			"id": fixture.ID + "-" + it.VideoID,
			"snippet": map[string]any{
				"title":       it.Title,
				"description": "",
				"position":    start + i,
				"resourceId":  map[string]any{"kind": "youtube#video", "videoId": it.VideoID},
				"thumbnails": map[string]any{
					"medium": map[string]any{"url": "https://i.ytimg.com/vi/" + it.VideoID + "/mqdefault.jpg"},
					"maxres": map[string]any{"url": "https://i.ytimg.com/vi/" + it.VideoID + "/maxresdefault.jpg"},
				},
			},
			"contentDetails": map[string]any{"videoId": it.VideoID},
			"status":         map[string]any{"privacyStatus": it.Status},
		})
	}
	writeJSON(w, http.StatusOK, pageBody("youtube#playlistItemListResponse", items, next))
}

func (p *Provider) videos(w http.ResponseWriter, r *http.Request) {
	p.count("videos")
	if p.rejected(w, r, "videos") {
		return
	}

	wanted := map[string]bool{}
	for _, value := range r.URL.Query()["id"] {
		for _, id := range strings.Split(value, ",") {
			wanted[id] = true
		}
	}

	items := []map[string]any{}
	p.mu.Lock()
	for _, pl := range p.Playlists {
		for _, it := range pl.Items {
			if wanted[it.VideoID] {
				wanted[it.VideoID] = false
				items = append(items, map[string]any{
					"id":     it.VideoID,
					"status": map[string]any{"uploadStatus": it.UploadStatus, "privacyStatus": it.Status},
				})
			}
		}
	}
	p.mu.Unlock()

	writeJSON(w, http.StatusOK, pageBody("youtube#videoListResponse", items, ""))
}

func (p *Provider) rejected(w http.ResponseWriter, r *http.Request, path string) bool {
	p.mu.Lock()
	fail := p.Fail[path]
	p.mu.Unlock()

	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]any{"code": 500, "message": "backendError"}})
		return true
	}
	if bearer(r) == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"code": 401, "message": "unauthorized"}})
		return true
	}
	return false
}

// page reads maxResults and pageToken and returns the slice bounds plus the next page token.
func page(r *http.Request, total int) (start, end int, next string) {
	size, err := strconv.Atoi(r.URL.Query().Get("maxResults"))
	if err != nil || size <= 0 {
		size = 5
	}
	if tok := r.URL.Query().Get("pageToken"); tok != "" {
		start, _ = strconv.Atoi(strings.TrimPrefix(tok, "p"))
	}
	start = min(start, total)
	end = min(start+size, total)
	if end < total {
		next = fmt.Sprintf("p%d", end)
	}
	return start, end, next
}

func pageBody(kind string, items []map[string]any, next string) map[string]any {
	body := map[string]any{"kind": kind, "items": items}
	if next != "" {
		body["nextPageToken"] = next
	}
	return body
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// IDToken signs an id_token for id with a throwaway key.
func IDToken(id Identity) string {
	claims := jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"sub":            "sub-" + id.Email,
		"email":          id.Email,
		"email_verified": id.Verified,
		"name":           id.Name,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	if err != nil {
		panic(err)
	}
	return signed
}
