package shared

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Credentials holds the resolved OAuth client settings.
type Credentials struct {
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	EncryptionKey []byte
}

type credentialsFile struct {
	Web *struct {
		ClientID     string   `json:"client_id"`
		ClientSecret string   `json:"client_secret"`
		RedirectURIs []string `json:"redirect_uris"`
	} `json:"web"`
}

// ParseCredentials decodes a credentials document of the form
// {"web": {"client_id", "client_secret", "redirect_uris": [...]}}.
//
// The first redirect URI is used.
func ParseCredentials(data []byte) (*Credentials, error) {
	var doc credentialsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	if doc.Web == nil {
		return nil, fmt.Errorf("%w: missing web object", ErrInvalidCredentials)
	}
	if doc.Web.ClientID == "" || doc.Web.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret are required", ErrMissingCredentials)
	}
	if len(doc.Web.RedirectURIs) == 0 || doc.Web.RedirectURIs[0] == "" {
		return nil, fmt.Errorf("%w: redirect_uris must not be empty", ErrMissingCredentials)
	}

	return &Credentials{
		ClientID:     doc.Web.ClientID,
		ClientSecret: doc.Web.ClientSecret,
		RedirectURI:  doc.Web.RedirectURIs[0],
	}, nil
}

// LoadCredentials resolves the OAuth client settings from the config.
//
// The credentials file is read when configured; explicit client_id, client_secret and redirect_uri values override it.
// Any failure is a [ConfigError].
func LoadCredentials(cfg CredentialsConfig) (*Credentials, error) {
	creds := &Credentials{}

	explicit := cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.RedirectURI != ""
	if cfg.File != "" && !explicit {
		data, err := os.ReadFile(cfg.File)
		if err != nil {
			return nil, &ConfigError{Path: cfg.File, Err: fmt.Errorf("%w: %v", ErrMissingCredentials, err)}
		}
		parsed, err := ParseCredentials(data)
		if err != nil {
			return nil, &ConfigError{Path: cfg.File, Err: err}
		}
		creds = parsed
	}

	if cfg.ClientID != "" {
		creds.ClientID = cfg.ClientID
	}
	if cfg.ClientSecret != "" {
		creds.ClientSecret = cfg.ClientSecret
	}
	if cfg.RedirectURI != "" {
		creds.RedirectURI = cfg.RedirectURI
	}

	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RedirectURI == "" {
		return nil, &ConfigError{Path: cfg.File, Err: ErrMissingCredentials}
	}

	key, err := ParseEncryptionKey(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	creds.EncryptionKey = key

	return creds, nil
}

// ParseEncryptionKey decodes the 64 hex character encryption_key. An empty value yields a nil key.
func ParseEncryptionKey(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(value)
	if err != nil || len(raw) != 32 {
		return nil, &ConfigError{Err: fmt.Errorf("%w: encryption_key must be 64 hex characters", ErrInvalidConfig)}
	}
	return raw, nil
}
