package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/repositories"
	"github.com/desertthunder/tubesync/internal/services"
	"github.com/desertthunder/tubesync/internal/shared"
	tu "github.com/desertthunder/tubesync/internal/testing"
)

type mockRemote struct {
	mu          sync.Mutex
	playlists   []models.PlaylistRecord
	items       map[string][]models.VideoRecord
	statuses    map[string]services.VideoStatus
	listErr     error
	itemsErr    error
	itemsFails  int // ListPlaylistItems fails this many times before succeeding
	statusErr   error
	listCalls   int
	itemCalls   int
	statusCalls int
}

func (m *mockRemote) ListPlaylists(ctx context.Context, client *http.Client) ([]models.PlaylistRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]models.PlaylistRecord(nil), m.playlists...), nil
}

func (m *mockRemote) ListPlaylistItems(ctx context.Context, client *http.Client, playlistID string) ([]models.VideoRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.itemCalls++
	if m.itemsFails > 0 {
		m.itemsFails--
		return nil, &shared.RemoteFetchError{Op: "playlistItems.list", Err: errors.New("backend error")}
	}
	if m.itemsErr != nil {
		return nil, m.itemsErr
	}
	return append([]models.VideoRecord(nil), m.items[playlistID]...), nil
}

func (m *mockRemote) VideoStatuses(ctx context.Context, client *http.Client, ids []string) (map[string]services.VideoStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCalls++
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	out := map[string]services.VideoStatus{}
	for _, id := range ids {
		if st, ok := m.statuses[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

type mockAuthorizer struct {
	err error
}

func (a *mockAuthorizer) Client(ctx context.Context, user *models.User) (*http.Client, error) {
	if a.err != nil {
		return nil, a.err
	}
	return http.DefaultClient, nil
}

func newRemote() *mockRemote {
	return &mockRemote{
		playlists: []models.PlaylistRecord{
			{YouTubeID: "PL1", Title: "Music: focus", ItemCount: 2},
			{YouTubeID: "PL2", Title: "Talks", ItemCount: 1},
			{YouTubeID: "PL3", Title: "   "},
			{YouTubeID: "", Title: "No id"},
		},
		items: map[string][]models.VideoRecord{
			"PL1": {
				{VideoID: "v1", Title: "Song", Position: 0, Status: "public"},
				{VideoID: "v2", Title: "Gone", Position: 1, Status: "private"},
			},
			"PL2": {
				{VideoID: "v3", Title: "Talk", Position: 0, Status: "public"},
			},
		},
	}
}

func setupSyncer(t *testing.T, remote *mockRemote) (*Syncer, *repositories.Store, *models.User) {
	t.Helper()

	store := repositories.NewStore(tu.NewDatabase(t), nil)
	user := &models.User{Email: "a@example.com", Name: "Ada"}
	if err := store.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	syncer := NewSyncer(store, remote, &mockAuthorizer{}, NewMemoryLocker(), Options{MaxRetries: 3}, log.New(io.Discard))
	return syncer, store, user
}

func videoIDs(t *testing.T, store *repositories.Store, playlistID string) map[string]string {
	t.Helper()
	videos, err := store.Videos.ListByPlaylist(context.Background(), playlistID)
	if err != nil {
		t.Fatalf("failed to list videos: %v", err)
	}
	ids := map[string]string{}
	for _, v := range videos {
		ids[v.VideoID] = v.ID
	}
	return ids
}

func TestSyncerPlaylists(t *testing.T) {
	ctx := context.Background()

	t.Run("cold start hydrates from remote", func(t *testing.T) {
		remote := newRemote()
		syncer, store, user := setupSyncer(t, remote)

		res, err := syncer.Playlists(ctx, nil, user)
		if err != nil {
			t.Fatalf("Playlists failed: %v", err)
		}
		if res.Source != SourceRemote {
			t.Errorf("expected source %q, got %q", SourceRemote, res.Source)
		}
		if len(res.Playlists) != 2 {
			t.Fatalf("expected 2 playlists (untitled and id-less skipped), got %d", len(res.Playlists))
		}
		if !res.Playlists[0].IsMusicPlaylist || res.Playlists[1].IsMusicPlaylist {
			t.Error("unexpected music flags")
		}

		count, _ := store.Videos.Count(ctx)
		if count != 3 {
			t.Errorf("expected 3 stored videos, got %d", count)
		}
	})

	t.Run("warm store answers without remote", func(t *testing.T) {
		remote := newRemote()
		syncer, _, user := setupSyncer(t, remote)

		if _, err := syncer.Playlists(ctx, nil, user); err != nil {
			t.Fatalf("first call failed: %v", err)
		}
		remote.playlists = append(remote.playlists, models.PlaylistRecord{YouTubeID: "PL9", Title: "New"})

		res, err := syncer.Playlists(ctx, nil, user)
		if err != nil {
			t.Fatalf("second call failed: %v", err)
		}
		if res.Source != SourceStore || len(res.Playlists) != 2 {
			t.Errorf("expected 2 playlists from the store, got %d from %s", len(res.Playlists), res.Source)
		}
		if remote.listCalls != 1 {
			t.Errorf("expected a single remote listing, got %d", remote.listCalls)
		}
	})

	t.Run("hydration is idempotent", func(t *testing.T) {
		remote := newRemote()
		syncer, store, user := setupSyncer(t, remote)

		first, err := syncer.Rehydrate(ctx, nil, user)
		if err != nil {
			t.Fatalf("first hydration failed: %v", err)
		}
		before := videoIDs(t, store, first.Playlists[0].ID)

		second, err := syncer.Rehydrate(ctx, nil, user)
		if err != nil {
			t.Fatalf("second hydration failed: %v", err)
		}

		for i := range first.Playlists {
			if first.Playlists[i].ID != second.Playlists[i].ID {
				t.Errorf("playlist %d changed id: %s -> %s", i, first.Playlists[i].ID, second.Playlists[i].ID)
			}
			if !first.Playlists[i].CreatedAt.Equal(second.Playlists[i].CreatedAt) {
				t.Errorf("playlist %d changed created_at", i)
			}
		}

		after := videoIDs(t, store, second.Playlists[0].ID)
		if len(before) != len(after) {
			t.Fatalf("video count changed: %d -> %d", len(before), len(after))
		}
		for vid, id := range before {
			if after[vid] != id {
				t.Errorf("video %s changed id: %s -> %s", vid, id, after[vid])
			}
		}

		playlists, _ := store.Playlists.CountByUser(ctx, user.ID)
		videos, _ := store.Videos.Count(ctx)
		if playlists != 2 || videos != 3 {
			t.Errorf("expected 2 playlists and 3 videos, got %d and %d", playlists, videos)
		}
	})

	t.Run("concurrent cold starts import once", func(t *testing.T) {
		remote := newRemote()
		syncer, _, user := setupSyncer(t, remote)

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := syncer.Playlists(ctx, nil, user); err != nil {
					t.Errorf("Playlists failed: %v", err)
				}
			}()
		}
		wg.Wait()

		if remote.listCalls != 1 {
			t.Errorf("expected a single remote listing, got %d", remote.listCalls)
		}
	})

	t.Run("transient item failures are retried", func(t *testing.T) {
		remote := newRemote()
		remote.itemsFails = 2
		syncer, _, user := setupSyncer(t, remote)

		if _, err := syncer.Playlists(ctx, nil, user); err != nil {
			t.Fatalf("expected retries to recover, got %v", err)
		}
	})

	t.Run("remote failure aborts", func(t *testing.T) {
		remote := newRemote()
		remote.listErr = &shared.RemoteFetchError{Op: "playlists.list", Err: errors.New("quota exceeded")}
		syncer, store, user := setupSyncer(t, remote)

		_, err := syncer.Playlists(ctx, nil, user)
		var rerr *shared.RemoteFetchError
		if !errors.As(err, &rerr) {
			t.Fatalf("expected RemoteFetchError, got %v", err)
		}
		if count, _ := store.Playlists.CountByUser(ctx, user.ID); count != 0 {
			t.Errorf("expected nothing stored, got %d", count)
		}
	})

	t.Run("refresh failure surfaces", func(t *testing.T) {
		syncer, _, user := setupSyncer(t, newRemote())
		syncer.auth = &mockAuthorizer{err: &shared.RefreshError{Err: shared.ErrRefreshFailed}}

		_, err := syncer.Playlists(ctx, nil, user)
		if !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
	})

	t.Run("progress never blocks", func(t *testing.T) {
		syncer, _, user := setupSyncer(t, newRemote())
		progress := make(chan ProgressUpdate)

		if _, err := syncer.Playlists(ctx, progress, user); err != nil {
			t.Fatalf("Playlists failed: %v", err)
		}
	})

	t.Run("progress reports each phase", func(t *testing.T) {
		syncer, _, user := setupSyncer(t, newRemote())
		progress := make(chan ProgressUpdate, 64)

		if _, err := syncer.Playlists(ctx, progress, user); err != nil {
			t.Fatalf("Playlists failed: %v", err)
		}
		close(progress)

		phases := map[Phase]int{}
		for u := range progress {
			phases[u.Phase]++
		}
		for _, phase := range []Phase{FetchPlaylists, StorePlaylists, FetchItems, StoreVideos} {
			if phases[phase] == 0 {
				t.Errorf("expected a %s update", phase)
			}
		}
	})
}

func TestSyncerProcessPlaylist(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown playlist", func(t *testing.T) {
		syncer, _, user := setupSyncer(t, newRemote())

		if _, err := syncer.ProcessPlaylist(ctx, nil, user, "PLmissing"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("playlist of another user", func(t *testing.T) {
		syncer, store, user := setupSyncer(t, newRemote())
		if _, err := syncer.Playlists(ctx, nil, user); err != nil {
			t.Fatalf("Playlists failed: %v", err)
		}

		other := &models.User{Email: "b@example.com"}
		if err := store.Users.Create(ctx, other); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		if _, err := syncer.ProcessPlaylist(ctx, nil, other, "PL1"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("re-syncs videos", func(t *testing.T) {
		remote := newRemote()
		syncer, store, user := setupSyncer(t, remote)
		if _, err := syncer.Playlists(ctx, nil, user); err != nil {
			t.Fatalf("Playlists failed: %v", err)
		}

		remote.items["PL1"] = []models.VideoRecord{
			{VideoID: "v1", Title: "Song (remaster)", Position: 0, Status: "public"},
			{VideoID: "v4", Title: "New", Position: 1, Status: "unlisted"},
			{VideoID: "v5", Title: "Newer", Position: 2, Status: "public"},
		}

		n, err := syncer.ProcessPlaylist(ctx, nil, user, "PL1")
		if err != nil {
			t.Fatalf("ProcessPlaylist failed: %v", err)
		}
		if n != 3 {
			t.Errorf("expected 3 videos, got %d", n)
		}

		p, _ := store.Playlists.GetByYouTubeID(ctx, "PL1")
		ids := videoIDs(t, store, p.ID)
		if _, ok := ids["v2"]; ok {
			t.Error("expected v2 to be removed")
		}
		if len(ids) != 3 {
			t.Errorf("expected 3 stored videos, got %v", ids)
		}

		v1, _ := store.Videos.GetByVideoID(ctx, "v1")
		if v1.Title != "Song (remaster)" {
			t.Errorf("expected refreshed title, got %q", v1.Title)
		}
	})

	t.Run("video shared between playlists", func(t *testing.T) {
		remote := newRemote()
		remote.items["PL2"] = append(remote.items["PL2"], models.VideoRecord{VideoID: "v1", Title: "Song", Position: 1, Status: "public"})
		syncer, store, user := setupSyncer(t, remote)
		if _, err := syncer.Playlists(ctx, nil, user); err != nil {
			t.Fatalf("Playlists failed: %v", err)
		}

		p1, _ := store.Playlists.GetByYouTubeID(ctx, "PL1")
		p2, _ := store.Playlists.GetByYouTubeID(ctx, "PL2")
		before1, before2 := videoIDs(t, store, p1.ID), videoIDs(t, store, p2.ID)
		if _, ok := before1["v1"]; !ok {
			t.Fatalf("expected v1 in PL1, got %v", before1)
		}
		if _, ok := before2["v1"]; !ok {
			t.Fatalf("expected v1 in PL2, got %v", before2)
		}

		for _, id := range []string{"PL1", "PL2", "PL1"} {
			if _, err := syncer.ProcessPlaylist(ctx, nil, user, id); err != nil {
				t.Fatalf("ProcessPlaylist(%s) failed: %v", id, err)
			}
		}

		after1, after2 := videoIDs(t, store, p1.ID), videoIDs(t, store, p2.ID)
		if after1["v1"] != before1["v1"] || after2["v1"] != before2["v1"] {
			t.Errorf("expected v1 rows to keep their ids, got %v/%v then %v/%v", before1, before2, after1, after2)
		}
		if len(after1) != 2 || len(after2) != 2 {
			t.Errorf("expected 2 videos in each playlist, got %v and %v", after1, after2)
		}
	})

	t.Run("failed fetch leaves store untouched", func(t *testing.T) {
		remote := newRemote()
		syncer, store, user := setupSyncer(t, remote)
		if _, err := syncer.Playlists(ctx, nil, user); err != nil {
			t.Fatalf("Playlists failed: %v", err)
		}

		remote.itemsErr = &shared.RemoteFetchError{Op: "playlistItems.list", Err: errors.New("boom")}
		if _, err := syncer.ProcessPlaylist(ctx, nil, user, "PL1"); err == nil {
			t.Fatal("expected an error")
		}

		p, _ := store.Playlists.GetByYouTubeID(ctx, "PL1")
		if ids := videoIDs(t, store, p.ID); len(ids) != 2 {
			t.Errorf("expected the 2 original videos, got %v", ids)
		}
	})
}

func TestSyncerReads(t *testing.T) {
	ctx := context.Background()
	syncer, _, user := setupSyncer(t, newRemote())
	if _, err := syncer.Playlists(ctx, nil, user); err != nil {
		t.Fatalf("Playlists failed: %v", err)
	}

	t.Run("MusicPlaylists", func(t *testing.T) {
		playlists, err := syncer.MusicPlaylists(ctx, user)
		if err != nil {
			t.Fatalf("MusicPlaylists failed: %v", err)
		}
		if len(playlists) != 1 || playlists[0].YouTubeID != "PL1" {
			t.Fatalf("expected only PL1, got %d playlists", len(playlists))
		}
		if len(playlists[0].Videos) != 1 || playlists[0].Videos[0].VideoID != "v1" {
			t.Errorf("expected only the public video, got %v", playlists[0].Videos)
		}
	})

	t.Run("Unavailable", func(t *testing.T) {
		videos, err := syncer.Unavailable(ctx, user)
		if err != nil {
			t.Fatalf("Unavailable failed: %v", err)
		}
		if len(videos) != 1 || videos[0].VideoID != "v2" || videos[0].PlaylistName != "Music: focus" {
			t.Errorf("unexpected unavailable videos %+v", videos)
		}
	})
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := shared.DefaultConfig().Sync
	opts := OptionsFromConfig(cfg)

	if opts.BatchSize != cfg.BatchSize || opts.MaxRetries != cfg.MaxRetries || opts.Backoff != cfg.RetryBackoff.Duration {
		t.Errorf("unexpected options %+v", opts)
	}
	if fmt.Sprint(opts.Backoff) != "200ms" {
		t.Errorf("expected default backoff of 200ms, got %v", opts.Backoff)
	}
}
