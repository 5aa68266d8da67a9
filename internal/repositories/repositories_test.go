package repositories

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, repo *UserRepository, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: "Test User"}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t), nil)
		user := createUser(t, repo, "test@example.com")

		if user.ID == "" {
			t.Error("user ID should be set after creation")
		}
		if user.Sequence != 1 {
			t.Errorf("expected sequence 1, got %d", user.Sequence)
		}
	})

	t.Run("Get & GetByEmail", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t), nil)
		user := createUser(t, repo, "test@example.com")

		byID, err := repo.Get(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		byEmail, err := repo.GetByEmail(ctx, "test@example.com")
		if err != nil {
			t.Fatalf("failed to get user by email: %v", err)
		}

		if byID.ID != byEmail.ID {
			t.Errorf("expected same user, got %s and %s", byID.ID, byEmail.ID)
		}
	})

	t.Run("Upsert keeps ID and refresh token", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t), nil)

		first := &models.User{Email: "test@example.com", Name: "First"}
		first.SetToken(&models.Token{AccessToken: "at1", RefreshToken: "rt1", TokenType: "Bearer", ExpiryDate: 1000})
		if err := repo.Upsert(ctx, first); err != nil {
			t.Fatalf("first upsert failed: %v", err)
		}

		second := &models.User{Email: "test@example.com"}
		second.SetToken(&models.Token{AccessToken: "at2", TokenType: "Bearer", ExpiryDate: 2000})
		if err := repo.Upsert(ctx, second); err != nil {
			t.Fatalf("second upsert failed: %v", err)
		}

		if second.ID != first.ID {
			t.Errorf("expected upsert to keep ID %s, got %s", first.ID, second.ID)
		}

		stored, err := repo.Get(ctx, first.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if stored.AccessToken != "at2" || stored.RefreshToken != "rt1" || stored.TokenExpiry != 2000 {
			t.Errorf("unexpected token columns: %+v", stored)
		}
		if stored.Name != "First" {
			t.Errorf("expected name to be kept, got %q", stored.Name)
		}

		users, _ := repo.List(ctx)
		if len(users) != 1 {
			t.Errorf("expected 1 user after two upserts, got %d", len(users))
		}
	})

	t.Run("SaveToken & ClearToken", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t), nil)
		user := createUser(t, repo, "test@example.com")

		tok := &models.Token{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer", Scope: "s", ExpiryDate: 42}
		if err := repo.SaveToken(ctx, user.ID, tok); err != nil {
			t.Fatalf("SaveToken failed: %v", err)
		}

		stored, _ := repo.Get(ctx, user.ID)
		if got := stored.Token(); got == nil || got.RefreshToken != "rt" {
			t.Fatalf("expected stored token, got %+v", got)
		}

		if err := repo.ClearToken(ctx, user.ID); err != nil {
			t.Fatalf("ClearToken failed: %v", err)
		}
		cleared, _ := repo.Get(ctx, user.ID)
		if cleared.HasToken() || cleared.RefreshToken != "" || cleared.TokenExpiry != 0 {
			t.Errorf("expected token columns to be cleared, got %+v", cleared)
		}

		if err := repo.ClearToken(ctx, "missing"); err != nil {
			t.Errorf("clearing a missing user should succeed, got %v", err)
		}
	})

	t.Run("Sealed token columns", func(t *testing.T) {
		db := setupTestDB(t)
		cipher, err := shared.NewCipher([]byte(strings.Repeat("k", 32)))
		if err != nil {
			t.Fatalf("NewCipher failed: %v", err)
		}
		repo := NewUserRepository(db, cipher)

		user := &models.User{Email: "sealed@example.com"}
		user.SetToken(&models.Token{AccessToken: "ya29.secret", RefreshToken: "1//refresh"})
		if err := repo.Create(ctx, user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		var raw string
		if err := db.QueryRow("SELECT access_token FROM users WHERE id = ?", user.ID).Scan(&raw); err != nil {
			t.Fatalf("failed to read raw column: %v", err)
		}
		if !strings.HasPrefix(raw, "enc:") {
			t.Errorf("expected sealed column, got %q", raw)
		}

		stored, err := repo.Get(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if stored.AccessToken != "ya29.secret" || stored.RefreshToken != "1//refresh" {
			t.Errorf("expected opened tokens, got %q / %q", stored.AccessToken, stored.RefreshToken)
		}
	})

	t.Run("Delete cascades", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewStore(db, nil)
		user := createUser(t, store.Users, "test@example.com")

		p := &models.Playlist{YouTubeID: "PL1", UserID: user.ID, Name: "Mix"}
		if err := store.Playlists.Create(ctx, p); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		if err := store.Users.Delete(ctx, user.ID); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}

		if _, err := store.Playlists.Get(ctx, p.ID); err == nil {
			t.Error("expected playlist to be removed with its owner")
		}
	})
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create, Get, Delete", func(t *testing.T) {
		store := NewStore(setupTestDB(t), nil)
		user := createUser(t, store.Users, "test@example.com")

		s := &models.Session{ID: "sid", UserID: user.ID, CSRFToken: "csrf", ExpiresAt: time.Now().Add(time.Hour).UnixMilli()}
		if err := store.Sessions.Create(ctx, s); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		got, err := store.Sessions.Get(ctx, "sid")
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if got.UserID != user.ID || got.CSRFToken != "csrf" {
			t.Errorf("unexpected session %+v", got)
		}

		if err := store.Sessions.Delete(ctx, "sid"); err != nil {
			t.Fatalf("failed to delete session: %v", err)
		}
		if err := store.Sessions.Delete(ctx, "sid"); err != nil {
			t.Errorf("deleting an absent session should succeed, got %v", err)
		}
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		store := NewStore(setupTestDB(t), nil)
		user := createUser(t, store.Users, "test@example.com")
		now := time.Now()

		for i, offset := range []time.Duration{-time.Hour, -time.Minute, time.Hour} {
			s := &models.Session{ID: string(rune('a' + i)), UserID: user.ID, CSRFToken: "c", ExpiresAt: now.Add(offset).UnixMilli()}
			if err := store.Sessions.Create(ctx, s); err != nil {
				t.Fatalf("failed to create session: %v", err)
			}
		}

		n, err := store.Sessions.DeleteExpired(ctx, now)
		if err != nil {
			t.Fatalf("DeleteExpired failed: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 expired sessions removed, got %d", n)
		}
	})

	t.Run("DeleteForUser", func(t *testing.T) {
		store := NewStore(setupTestDB(t), nil)
		user := createUser(t, store.Users, "test@example.com")
		exp := time.Now().Add(time.Hour).UnixMilli()

		for _, id := range []string{"s1", "s2"} {
			if err := store.Sessions.Create(ctx, &models.Session{ID: id, UserID: user.ID, CSRFToken: "c", ExpiresAt: exp}); err != nil {
				t.Fatalf("failed to create session: %v", err)
			}
		}

		if err := store.Sessions.DeleteForUser(ctx, user.ID); err != nil {
			t.Fatalf("DeleteForUser failed: %v", err)
		}
		if _, err := store.Sessions.Get(ctx, "s1"); err == nil {
			t.Error("expected sessions to be removed")
		}
	})
}

func TestPlaylistRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Upsert is idempotent", func(t *testing.T) {
		store := NewStore(setupTestDB(t), nil)
		user := createUser(t, store.Users, "test@example.com")

		first := models.NewPlaylist(user.ID, models.PlaylistRecord{YouTubeID: "PL1", Title: "Road trip", ItemCount: 3})
		created, err := store.Playlists.Upsert(ctx, first)
		if err != nil || !created {
			t.Fatalf("expected create, got created=%v err=%v", created, err)
		}

		second := models.NewPlaylist(user.ID, models.PlaylistRecord{YouTubeID: "PL1", Title: "Music: road trip", ItemCount: 5})
		created, err = store.Playlists.Upsert(ctx, second)
		if err != nil || created {
			t.Fatalf("expected update, got created=%v err=%v", created, err)
		}

		if second.ID != first.ID || second.Sequence != first.Sequence {
			t.Errorf("upsert changed primary key: %s/%d -> %s/%d", first.ID, first.Sequence, second.ID, second.Sequence)
		}

		stored, err := store.Playlists.GetByYouTubeID(ctx, "PL1")
		if err != nil {
			t.Fatalf("failed to get playlist: %v", err)
		}
		if stored.ItemCount != 5 || !stored.IsMusicPlaylist {
			t.Errorf("expected refreshed mutable fields, got %+v", stored)
		}
		if !stored.CreatedAt.Equal(first.CreatedAt) {
			t.Errorf("created_at changed: %v -> %v", first.CreatedAt, stored.CreatedAt)
		}

		count, _ := store.Playlists.CountByUser(ctx, user.ID)
		if count != 1 {
			t.Errorf("expected 1 playlist, got %d", count)
		}
	})

	t.Run("List with criteria", func(t *testing.T) {
		store := NewStore(setupTestDB(t), nil)
		alice := createUser(t, store.Users, "alice@example.com")
		bob := createUser(t, store.Users, "bob@example.com")

		records := []struct {
			owner string
			rec   models.PlaylistRecord
		}{
			{alice.ID, models.PlaylistRecord{YouTubeID: "A1", Title: "music: focus"}},
			{alice.ID, models.PlaylistRecord{YouTubeID: "A2", Title: "Talks"}},
			{bob.ID, models.PlaylistRecord{YouTubeID: "B1", Title: "Music: gym"}},
		}
		for _, r := range records {
			if _, err := store.Playlists.Upsert(ctx, models.NewPlaylist(r.owner, r.rec)); err != nil {
				t.Fatalf("failed to upsert playlist: %v", err)
			}
		}

		all, err := store.Playlists.List(ctx, ListCriteria{UserID: alice.ID})
		if err != nil {
			t.Fatalf("failed to list playlists: %v", err)
		}
		if len(all) != 2 || all[0].YouTubeID != "A1" {
			t.Errorf("expected alice's 2 playlists in sequence order, got %d", len(all))
		}

		music, err := store.Playlists.List(ctx, ListCriteria{UserID: alice.ID, MusicOnly: true})
		if err != nil {
			t.Fatalf("failed to list music playlists: %v", err)
		}
		if len(music) != 1 || music[0].YouTubeID != "A1" {
			t.Errorf("expected only A1, got %+v", music)
		}
	})
}

func TestVideoRepository(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Store, *models.User, *models.Playlist) {
		store := NewStore(setupTestDB(t), nil)
		user := createUser(t, store.Users, "test@example.com")
		p := models.NewPlaylist(user.ID, models.PlaylistRecord{YouTubeID: "PL1", Title: "Mix"})
		if err := store.Playlists.Create(ctx, p); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
		return store, user, p
	}

	t.Run("Upsert keeps ID", func(t *testing.T) {
		store, _, p := setup(t)

		first := models.NewVideo(p.ID, models.VideoRecord{VideoID: "v1", Title: "One", Status: "public"})
		if _, err := store.Videos.Upsert(ctx, first); err != nil {
			t.Fatalf("failed to upsert video: %v", err)
		}

		second := models.NewVideo(p.ID, models.VideoRecord{VideoID: "v1", Title: "One (live)", Status: "private", Position: 3})
		created, err := store.Videos.Upsert(ctx, second)
		if err != nil || created {
			t.Fatalf("expected update, got created=%v err=%v", created, err)
		}
		if second.ID != first.ID {
			t.Errorf("expected ID %s, got %s", first.ID, second.ID)
		}

		stored, _ := store.Videos.GetByVideoID(ctx, "v1")
		if stored.Title != "One (live)" || stored.Availability != models.AvailabilityUnavailable {
			t.Errorf("unexpected stored video %+v", stored)
		}
	})

	t.Run("Upsert keeps one row per playlist", func(t *testing.T) {
		store, user, p := setup(t)
		other := models.NewPlaylist(user.ID, models.PlaylistRecord{YouTubeID: "PL2", Title: "Other"})
		if err := store.Playlists.Create(ctx, other); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		inFirst := models.NewVideo(p.ID, models.VideoRecord{VideoID: "v1", Title: "One", Status: "public"})
		inOther := models.NewVideo(other.ID, models.VideoRecord{VideoID: "v1", Title: "One", Status: "public"})
		for _, v := range []*models.Video{inFirst, inOther} {
			if created, err := store.Videos.Upsert(ctx, v); err != nil || !created {
				t.Fatalf("expected create, got created=%v err=%v", created, err)
			}
		}

		again := models.NewVideo(p.ID, models.VideoRecord{VideoID: "v1", Title: "One (edit)", Status: "public"})
		if created, err := store.Videos.Upsert(ctx, again); err != nil || created {
			t.Fatalf("expected update, got created=%v err=%v", created, err)
		}
		if again.ID != inFirst.ID {
			t.Errorf("expected ID %s, got %s", inFirst.ID, again.ID)
		}

		got, err := store.Videos.GetInPlaylist(ctx, other.ID, "v1")
		if err != nil {
			t.Fatalf("failed to get video: %v", err)
		}
		if got.ID != inOther.ID || got.PlaylistID != other.ID || got.Title != "One" {
			t.Errorf("other playlist's row changed: %+v", got)
		}
	})

	t.Run("ListByPlaylist orders by position", func(t *testing.T) {
		store, _, p := setup(t)
		for i, id := range []string{"c", "a", "b"} {
			v := models.NewVideo(p.ID, models.VideoRecord{VideoID: id, Position: 2 - i, Status: "public"})
			if err := store.Videos.Create(ctx, v); err != nil {
				t.Fatalf("failed to create video: %v", err)
			}
		}

		videos, err := store.Videos.ListByPlaylist(ctx, p.ID)
		if err != nil {
			t.Fatalf("failed to list videos: %v", err)
		}
		got := []string{}
		for _, v := range videos {
			got = append(got, v.VideoID)
		}
		if strings.Join(got, ",") != "b,a,c" {
			t.Errorf("expected order b,a,c, got %v", got)
		}
	})

	t.Run("ListUnavailable & UpdateStatus", func(t *testing.T) {
		store, user, p := setup(t)

		ok := models.NewVideo(p.ID, models.VideoRecord{VideoID: "ok", Status: "public"})
		gone := models.NewVideo(p.ID, models.VideoRecord{VideoID: "gone", Status: "private"})
		stuck := models.NewVideo(p.ID, models.VideoRecord{VideoID: "stuck", Status: models.StatusProcessing})
		for _, v := range []*models.Video{ok, gone, stuck} {
			if err := store.Videos.Create(ctx, v); err != nil {
				t.Fatalf("failed to create video: %v", err)
			}
		}

		unavailable, err := store.Videos.ListUnavailable(ctx, user.ID)
		if err != nil {
			t.Fatalf("ListUnavailable failed: %v", err)
		}
		if len(unavailable) != 2 || unavailable[0].PlaylistName != "Mix" {
			t.Errorf("expected 2 unavailable videos in Mix, got %+v", unavailable)
		}

		processing, err := store.Videos.ListByStatus(ctx, models.StatusProcessing)
		if err != nil || len(processing) != 1 {
			t.Fatalf("expected 1 processing video, got %d (%v)", len(processing), err)
		}

		if err := store.Videos.UpdateStatus(ctx, stuck.ID, "public"); err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}
		updated, _ := store.Videos.GetByVideoID(ctx, "stuck")
		if !updated.Available() {
			t.Errorf("expected video to become available, got %+v", updated)
		}
	})
}

func TestStoreInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		store := NewStore(setupTestDB(t), nil)
		err := store.InTx(ctx, func(tx *Store) error {
			return tx.Users.Upsert(ctx, &models.User{Email: "tx@example.com"})
		})
		if err != nil {
			t.Fatalf("InTx failed: %v", err)
		}
		if _, err := store.Users.GetByEmail(ctx, "tx@example.com"); err != nil {
			t.Errorf("expected committed user, got %v", err)
		}
	})

	t.Run("rollback", func(t *testing.T) {
		store := NewStore(setupTestDB(t), nil)
		user := createUser(t, store.Users, "owner@example.com")

		err := store.InTx(ctx, func(tx *Store) error {
			p := models.NewPlaylist(user.ID, models.PlaylistRecord{YouTubeID: "PL1", Title: "Mix"})
			if _, err := tx.Playlists.Upsert(ctx, p); err != nil {
				return err
			}
			// A video without a video id fails validation and aborts the whole write.
			_, err := tx.Videos.Upsert(ctx, models.NewVideo(p.ID, models.VideoRecord{}))
			return err
		})
		if err == nil {
			t.Fatal("expected InTx to fail")
		}

		count, _ := store.Playlists.CountByUser(ctx, user.ID)
		if count != 0 {
			t.Errorf("expected rollback to leave no playlists, got %d", count)
		}
	})
}

func TestVideoRepositoryDeleteMissing(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t), nil)
	user := createUser(t, store.Users, "test@example.com")
	p := models.NewPlaylist(user.ID, models.PlaylistRecord{YouTubeID: "PL1", Title: "Mix"})
	if err := store.Playlists.Create(ctx, p); err != nil {
		t.Fatalf("failed to create playlist: %v", err)
	}

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Videos.Create(ctx, models.NewVideo(p.ID, models.VideoRecord{VideoID: id})); err != nil {
			t.Fatalf("failed to create video: %v", err)
		}
	}

	n, err := store.Videos.DeleteMissing(ctx, p.ID, []string{"a", "c"})
	if err != nil {
		t.Fatalf("DeleteMissing failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 removed video, got %d", n)
	}

	n, err = store.Videos.DeleteMissing(ctx, p.ID, nil)
	if err != nil {
		t.Fatalf("DeleteMissing failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected an empty keep list to remove the remaining 2 videos, got %d", n)
	}
}
