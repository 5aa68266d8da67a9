package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tubesync/internal/auth"
	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/repositories"
	"github.com/desertthunder/tubesync/internal/services"
	"github.com/desertthunder/tubesync/internal/shared"
	"github.com/desertthunder/tubesync/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	endpoints  *auth.Endpoints
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config // Skips reading the config file when set
	ConfigPath string
	HTTPClient *http.Client
	Endpoints  *auth.Endpoints // Overrides the Google endpoints
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		endpoints:  opts.Endpoints,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, migrateCommand, playlistsCommand, exportCommand, authCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// app returns the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "tubesync",
		Usage:   "Sync YouTube playlists into a local store and serve them over HTTP",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("TUBESYNC_CONFIG"),
			},
		},
		Commands: r.register(),
	}
}

// loadConfig reads the config file (defaults when it does not exist), overlays
// TUBESYNC_* variables and applies the log level.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	path := cmd.String("config")
	if path == "" {
		path = r.configPath
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			return nil, err
		}
	} else {
		r.logger.Debug("config file not found, using defaults", "path", path)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := shared.ConfigureLogger(r.logger, config.Server.LogLevel); err != nil {
		return nil, err
	}

	r.config = config
	r.configPath = path
	return config, nil
}

// openStore opens and migrates the database. Token columns are sealed when encryption_key is set.
func (r *Runner) openStore(ctx context.Context, config *shared.Config) (*repositories.Store, func() error, error) {
	key, err := shared.ParseEncryptionKey(config.Credentials.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}
	cipher, err := shared.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	applied, err := shared.RunMigrations(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if applied > 0 {
		r.logger.Info("applied migrations", "count", applied)
	}

	return repositories.NewStore(db, cipher), db.Close, nil
}

func (r *Runner) newManager(config *shared.Config, store *repositories.Store) (*auth.Manager, error) {
	creds, err := shared.LoadCredentials(config.Credentials)
	if err != nil {
		return nil, err
	}

	opts := []auth.Option{auth.WithHTTPClient(r.httpClient), auth.WithLogger(r.logger)}
	if r.endpoints != nil {
		opts = append(opts, auth.WithEndpoints(*r.endpoints))
	}

	if store == nil {
		return auth.NewManager(creds, nil, nil, opts...), nil
	}
	return auth.NewManager(creds, store.Users, store.Sessions, opts...), nil
}

func (r *Runner) newYouTube() *services.YouTubeService {
	opts := []services.YouTubeOption{services.WithLogger(r.logger)}
	if r.endpoints != nil && r.endpoints.APIBase != "" {
		opts = append(opts, services.WithEndpoint(r.endpoints.APIBase))
	}
	return services.NewYouTubeService(opts...)
}

// newLocker returns a Redis lock when redis_url is configured, nil (in-process locks) otherwise.
func (r *Runner) newLocker(ctx context.Context, config *shared.Config) (tasks.Locker, func() error, error) {
	if config.Server.RedisURL == "" {
		return nil, func() error { return nil }, nil
	}

	locker, err := tasks.NewRedisLocker(ctx, config.Server.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	r.logger.Info("using redis locks")
	return locker, locker.Close, nil
}

func (r *Runner) findUser(ctx context.Context, store *repositories.Store, email string) (*models.User, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: --email is required", shared.ErrMissingArgument)
	}

	user, err := store.Users.GetByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: no user %s, log in through the web app first", shared.ErrNotAuthenticated, email)
	}
	return user, err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
