package models

import (
	"testing"
	"time"
)

func TestDerivedFields(t *testing.T) {
	t.Run("IsMusicTitle", func(t *testing.T) {
		tc := []struct {
			title string
			want  bool
		}{
			{"music: road trip", true},
			{"Music: Focus", true},
			{"My MUSIC: mix", true},
			{"musical theatre", false},
			{"Workouts", false},
		}
		for _, tt := range tc {
			if got := IsMusicTitle(tt.title); got != tt.want {
				t.Errorf("IsMusicTitle(%q) = %v, want %v", tt.title, got, tt.want)
			}
		}
	})

	t.Run("AvailabilityFor", func(t *testing.T) {
		tc := map[string]string{
			"public":   AvailabilityAvailable,
			"PUBLIC":   AvailabilityAvailable,
			"private":  AvailabilityUnavailable,
			"unlisted": AvailabilityUnavailable,
			"":         AvailabilityUnavailable,
		}
		for status, want := range tc {
			if got := AvailabilityFor(status); got != want {
				t.Errorf("AvailabilityFor(%q) = %s, want %s", status, got, want)
			}
		}
	})

	t.Run("NewVideo", func(t *testing.T) {
		v := NewVideo("pl-1", VideoRecord{VideoID: "abc123", Title: "Song", Status: "public", Position: 2})
		if v.URL != "https://www.youtube.com/watch?v=abc123" {
			t.Errorf("unexpected url %s", v.URL)
		}
		if !v.Available() {
			t.Error("public video should be available")
		}
		if err := v.Validate(); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}
	})

	t.Run("NewPlaylist", func(t *testing.T) {
		p := NewPlaylist("user-1", PlaylistRecord{YouTubeID: "PL1", Title: "Music: chill", ItemCount: 4})
		if !p.IsMusicPlaylist {
			t.Error("expected music playlist")
		}
		if err := p.Validate(); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}
		p.Name = " "
		if err := p.Validate(); err == nil {
			t.Error("expected validation error for blank name")
		}
	})
}

func TestUserToken(t *testing.T) {
	u := &User{Email: "a@example.com"}
	if u.Token() != nil {
		t.Fatal("user without access token should have no token")
	}

	expiry := time.Now().Add(time.Hour).UnixMilli()
	u.SetToken(&Token{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer", ExpiryDate: expiry})

	u.SetToken(&Token{AccessToken: "at2", TokenType: "Bearer", ExpiryDate: expiry})
	if u.RefreshToken != "rt" {
		t.Errorf("empty refresh token should keep the stored one, got %q", u.RefreshToken)
	}

	tok := u.Token()
	if tok.AccessToken != "at2" || tok.Email != "a@example.com" || tok.ExpiryDate != expiry {
		t.Errorf("unexpected token %+v", tok)
	}
	if tok.ExpiresIn <= 0 || tok.ExpiresIn > 3600 {
		t.Errorf("expected expires_in within an hour, got %d", tok.ExpiresIn)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now.Add(time.Minute).UnixMilli()}
	if s.Expired(now) {
		t.Error("session should not be expired yet")
	}
	if !s.Expired(now.Add(2 * time.Minute)) {
		t.Error("session should be expired")
	}
}
