package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tubesync/internal/formatter"
	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/repositories"
	"github.com/desertthunder/tubesync/internal/tasks"
	"github.com/desertthunder/tubesync/internal/ui"
)

// Playlists prints a user's playlists. The first call imports them from YouTube;
// --refresh imports them again.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	store, closeDB, err := r.openStore(ctx, config)
	if err != nil {
		return err
	}
	defer closeDB()

	user, err := r.findUser(ctx, store, cmd.String("email"))
	if err != nil {
		return err
	}

	asJSON := cmd.Bool("json")
	if cmd.Bool("unavailable") {
		return r.unavailable(ctx, store, user, asJSON)
	}

	manager, err := r.newManager(config, store)
	if err != nil {
		return err
	}
	syncer := tasks.NewSyncer(store, r.newYouTube(), manager, nil, tasks.OptionsFromConfig(config.Sync), r.logger)

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			if !asJSON {
				r.writePlain("%s\n", ui.Progress(u))
			}
		}
	}()

	var res *tasks.Result
	if cmd.Bool("refresh") {
		res, err = syncer.Rehydrate(ctx, progress, user)
	} else {
		res, err = syncer.Playlists(ctx, progress, user)
	}
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if asJSON {
		return r.writeJSON(res.Playlists, true)
	}

	r.writePlain("\n%s\n", ui.Styles.Title(fmt.Sprintf("%d playlists for %s (%s)", len(res.Playlists), user.Email, res.Source)))
	return r.writePlain("%s\n", ui.PlaylistTable(res.Playlists))
}

func (r *Runner) unavailable(ctx context.Context, store *repositories.Store, user *models.User, asJSON bool) error {
	videos, err := store.Videos.ListUnavailable(ctx, user.ID)
	if err != nil {
		return err
	}

	if asJSON {
		return r.writeJSON(videos, true)
	}
	if len(videos) == 0 {
		return r.writePlain("%s\n", ui.Styles.OK("✓ every stored video is available"))
	}

	r.writePlain("%s\n", ui.Styles.Title(fmt.Sprintf("%d unavailable videos", len(videos))))
	return r.writePlain("%s\n", ui.UnavailableTable(videos))
}

// Export writes stored data without calling the remote API.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	kind, err := formatter.ParseKind(cmd.String("kind"))
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	store, closeDB, err := r.openStore(ctx, config)
	if err != nil {
		return err
	}
	defer closeDB()

	user, err := r.findUser(ctx, store, cmd.String("email"))
	if err != nil {
		return err
	}

	export, err := r.collect(ctx, store, user, kind)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if output == "-" {
		data, err := formatter.Render(export, format)
		if err != nil {
			return err
		}
		if _, err := r.output.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	path, err := formatter.WriteExport(export, format, output)
	if err != nil {
		return err
	}
	r.logger.Info("export written", "kind", kind, "format", format, "path", path)
	return r.writePlain("%s exported %d videos to %s\n", ui.Styles.OK("✓"), export.VideoCount(), path)
}

// collect reads the data set for kind from the store.
func (r *Runner) collect(ctx context.Context, store *repositories.Store, user *models.User, kind formatter.Kind) (*formatter.Export, error) {
	export := &formatter.Export{Kind: kind, Owner: user.Email}
	syncer := tasks.NewSyncer(store, nil, nil, nil, tasks.Options{}, r.logger)

	switch kind {
	case formatter.KindMusic:
		playlists, err := syncer.MusicPlaylists(ctx, user)
		if err != nil {
			return nil, err
		}
		export.Playlists = playlists
	case formatter.KindUnavailable:
		videos, err := syncer.Unavailable(ctx, user)
		if err != nil {
			return nil, err
		}
		export.Playlists = formatter.GroupUnavailable(videos)
	default:
		playlists, err := store.Playlists.List(ctx, repositories.ListCriteria{UserID: user.ID})
		if err != nil {
			return nil, err
		}
		for _, p := range playlists {
			if p.Videos, err = store.Videos.ListByPlaylist(ctx, p.ID); err != nil {
				return nil, err
			}
		}
		export.Playlists = playlists
	}
	return export, nil
}
