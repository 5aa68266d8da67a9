package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tubesync/internal/shared"
	"github.com/desertthunder/tubesync/internal/ui"
)

// Setup creates the config file from the template when it is missing, then initializes the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if configPath == "" {
		configPath = r.configPath
	}

	if r.config == nil {
		if _, err := os.Stat(configPath); err != nil {
			r.logger.Info("config file not found, creating from template", "path", configPath)
			if err := shared.CreateConfigFile(configPath); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}
			r.writePlain("%s %s\n", ui.Styles.OK("✓"), "wrote "+configPath)
		}
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", config.Database.Path)
	store, closeDB, err := r.openStore(ctx, config)
	if err != nil {
		return err
	}
	defer closeDB()

	users, err := store.Users.List(ctx)
	if err != nil {
		return err
	}

	r.writePlain("%s database ready at %s (%d users)\n", ui.Styles.OK("✓"), config.Database.Path, len(users))
	if _, err := shared.LoadCredentials(config.Credentials); err != nil {
		r.writePlain("%s\n", ui.Styles.Warn("OAuth credentials are not configured: "+err.Error()))
		r.writePlain("%s\n", ui.Styles.Help("Set credentials.file or client_id, client_secret and redirect_uri in "+configPath))
	}
	return nil
}

func (r *Runner) openDatabase(cmd *cli.Command) (*sql.DB, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	return db, nil
}

// MigrateUp applies pending migrations.
func (r *Runner) MigrateUp(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := shared.RunMigrations(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return r.writePlain("%s applied %d migrations\n", ui.Styles.OK("✓"), applied)
}

// MigrateDown rolls back the latest migration.
func (r *Runner) MigrateDown(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := shared.RollbackMigration(ctx, db)
	if err != nil {
		return err
	}
	return r.writePlain("%s rolled back %04d_%s\n", ui.Styles.OK("✓"), m.Version, m.Name)
}

// MigrateStatus prints every known migration.
func (r *Runner) MigrateStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	statuses, err := shared.MigrationsStatus(ctx, db)
	if err != nil {
		return err
	}

	r.writePlain("%s\n", ui.Styles.Title("Migrations"))
	for _, s := range statuses {
		state := ui.Styles.Warn("pending")
		if s.Applied {
			state = ui.Styles.OK("applied")
		}
		if err := r.writePlain("%04d_%-24s %s\n", s.Version, s.Name, state); err != nil {
			return err
		}
	}
	return nil
}
