package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tubesync/internal/shared"
	"github.com/desertthunder/tubesync/internal/ui"
)

// AuthURL prints a consent URL with a fresh state value.
func (r *Runner) AuthURL(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	manager, err := r.newManager(config, nil)
	if err != nil {
		return err
	}

	state, err := shared.RandomToken(16)
	if err != nil {
		return err
	}

	r.writePlain("%s\n", manager.AuthURL(state))
	return r.writePlain("%s\n", ui.Styles.Help("state: "+state))
}

// AuthRevoke revokes the user's grant at Google, clears the stored token and deletes every session.
func (r *Runner) AuthRevoke(ctx context.Context, cmd *cli.Command) error {
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

	user, err := r.findUser(ctx, store, cmd.String("email"))
	if err != nil {
		return err
	}

	if !user.HasToken() {
		return r.writePlain("%s\n", ui.Styles.Warn(user.Email+" has no stored grant"))
	}

	if err := manager.Revoke(ctx, user); err != nil {
		return err
	}
	r.logger.Info("grant revoked", "email", user.Email)
	return r.writePlain("%s revoked access for %s\n", ui.Styles.OK("✓"), user.Email)
}
