package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Sync        SyncConfig        `toml:"sync"`
}

// CredentialsConfig contains the OAuth client settings.
//
// Explicit values take precedence over the ones read from File.
type CredentialsConfig struct {
	File          string `toml:"file"`
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	RedirectURI   string `toml:"redirect_uri"`
	EncryptionKey string `toml:"encryption_key"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Production    bool   `toml:"production"`
	LogLevel      string `toml:"log_level"`
	AllowedOrigin string `toml:"allowed_origin"`
	FrontendURL   string `toml:"frontend_url"`
	RedisURL      string `toml:"redis_url"`
}

// SyncConfig contains batch and polling settings for playlist synchronization.
type SyncConfig struct {
	BatchSize    int      `toml:"batch_size"`
	MaxRetries   int      `toml:"max_retries"`
	RetryBackoff Duration `toml:"retry_backoff"`
	PollInterval Duration `toml:"poll_interval"`
}

// Duration wraps [time.Duration] so it can be written as "5m" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidConfig, text)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Addr returns host:port for [http.Server].
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file fall back to the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("failed to read config file: %w", err)}
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("failed to parse config: %w", err)}
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads variables from the given .env files into the process environment.
//
// Missing files are skipped. Variables already set are not overwritten.
func LoadEnv(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// ApplyEnv overlays TUBESYNC_* environment variables onto the config.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"TUBESYNC_CREDENTIALS_FILE": &c.Credentials.File,
		"TUBESYNC_CLIENT_ID":        &c.Credentials.ClientID,
		"TUBESYNC_CLIENT_SECRET":    &c.Credentials.ClientSecret,
		"TUBESYNC_REDIRECT_URI":     &c.Credentials.RedirectURI,
		"TUBESYNC_ENCRYPTION_KEY":   &c.Credentials.EncryptionKey,
		"TUBESYNC_DATABASE_PATH":    &c.Database.Path,
		"TUBESYNC_HOST":             &c.Server.Host,
		"TUBESYNC_LOG_LEVEL":        &c.Server.LogLevel,
		"TUBESYNC_ALLOWED_ORIGIN":   &c.Server.AllowedOrigin,
		"TUBESYNC_FRONTEND_URL":     &c.Server.FrontendURL,
		"TUBESYNC_REDIS_URL":        &c.Server.RedisURL,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("TUBESYNC_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: TUBESYNC_PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}

	if v, ok := os.LookupEnv("TUBESYNC_PRODUCTION"); ok {
		prod, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: TUBESYNC_PRODUCTION=%q", ErrInvalidConfig, v)
		}
		c.Server.Production = prod
	}

	return nil
}
