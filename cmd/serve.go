package main

import (
	"context"
	"errors"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/tubesync/internal/server"
	"github.com/desertthunder/tubesync/internal/session"
	"github.com/desertthunder/tubesync/internal/tasks"
)

// Serve runs the HTTP API until ctx is cancelled. The stuck-video poller runs
// alongside it when sync.poll_interval is positive.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	store, closeDB, err := r.openStore(ctx, config)
	if err != nil {
		return err
	}
	defer closeDB()

	manager, err := r.newManager(config, store)
	if err != nil {
		return err
	}

	locker, closeLocker, err := r.newLocker(ctx, config)
	if err != nil {
		return err
	}
	defer closeLocker()

	if n, err := store.Sessions.DeleteExpired(ctx, time.Now()); err != nil {
		r.logger.Warn("failed to prune expired sessions", "error", err)
	} else if n > 0 {
		r.logger.Info("pruned expired sessions", "count", n)
	}

	youtube := r.newYouTube()
	syncer := tasks.NewSyncer(store, youtube, manager, locker, tasks.OptionsFromConfig(config.Sync), r.logger)
	codec := session.NewCodec(store.Sessions, store.Users, config.Server.Production, r.logger)
	srv := server.New(config.Server, manager, store.Users, codec, syncer, r.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })

	if interval := config.Sync.PollInterval.Duration; interval > 0 {
		poller := tasks.NewPoller(store, youtube, manager, tasks.PollerOpts{Interval: interval}, nil, r.logger)
		g.Go(func() error {
			if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}
