// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func emailFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "email",
		Aliases:  []string{"e"},
		Usage:    "Email of a user who has logged in through the web app",
		Required: true,
		Sources:  cli.EnvVars("TUBESYNC_EMAIL"),
	}
}

// setupCommand writes the example config if absent and migrates the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml from the template, initialize the database and run migrations",
		Action: r.Setup,
	}
}

// serveCommand runs the HTTP API and the stuck-video poller.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP API",
		Action: r.Serve,
	}
}

// migrateCommand handles schema migrations
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage database migrations",
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply pending migrations",
				Action: r.MigrateUp,
			},
			{
				Name:   "down",
				Usage:  "Roll back the most recent migration",
				Action: r.MigrateDown,
			},
			{
				Name:   "status",
				Usage:  "List migrations and whether they are applied",
				Action: r.MigrateStatus,
			},
		},
	}
}

// playlistsCommand lists a user's playlists, hydrating from YouTube when the store is empty.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "List a user's playlists, importing them from YouTube on first use",
		Flags: []cli.Flag{
			emailFlag(),
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Re-import every playlist from YouTube",
			},
			&cli.BoolFlag{
				Name:  "unavailable",
				Usage: "List unavailable videos instead of playlists",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Playlists,
	}
}

// exportCommand writes stored data to a file.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export stored playlists as CSV, Markdown or text",
		Flags: []cli.Flag{
			emailFlag(),
			&cli.StringFlag{
				Name:  "kind",
				Usage: "What to export: music, unavailable or playlist",
				Value: "music",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: csv, markdown or text",
				Value:   "csv",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path; - writes to stdout (default: {kind}.{ext})",
			},
		},
		Action: r.Export,
	}
}

// authCommand handles OAuth grant operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Google OAuth grants",
		Commands: []*cli.Command{
			{
				Name:   "url",
				Usage:  "Print a consent URL; post the returned code to /api/auth/callback",
				Action: r.AuthURL,
			},
			{
				Name:   "revoke",
				Usage:  "Revoke a user's grant and delete their sessions",
				Flags:  []cli.Flag{emailFlag()},
				Action: r.AuthRevoke,
			},
		},
	}
}
