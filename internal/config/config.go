// Package config loads and validates the server configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ridwanullahh/qurandb/internal/auth"
	"github.com/ridwanullahh/qurandb/internal/docstore"
	"github.com/ridwanullahh/qurandb/internal/email"
)

// Store backends.
const (
	BackendGitHub = "github"
	BackendGit    = "git"
	BackendMemory = "memory"
)

// StoreConfig selects and configures the blob backend.
type StoreConfig struct {
	// Backend is "github", "git" or "memory".
	Backend string `yaml:"backend"`

	// GitHub backend.
	Owner  string `yaml:"owner,omitempty"`
	Repo   string `yaml:"repo,omitempty"`
	Branch string `yaml:"branch,omitempty"`
	// Token is a personal access token. Overridden by GITHUB_TOKEN.
	Token string `yaml:"token,omitempty"`
	// App credentials are used instead of Token when AppID is set.
	AppID          int64  `yaml:"app_id,omitempty"`
	InstallationID int64  `yaml:"installation_id,omitempty"`
	PrivateKeyFile string `yaml:"private_key_file,omitempty"`

	// Git backend.
	Dir string `yaml:"dir,omitempty"`

	// BasePath is the directory holding collection files inside the
	// repository.
	BasePath string `yaml:"base_path"`
	// MediaPath is the directory for uploaded media files.
	MediaPath string `yaml:"media_path"`
}

// AuthConfig is the on-disk shape of the auth settings.
type AuthConfig struct {
	RequireEmailVerification bool     `yaml:"require_email_verification"`
	OTPTriggers              []string `yaml:"otp_triggers,omitempty"`
	// SessionDurationMS is the session lifetime in milliseconds. Zero means
	// the built-in default of seven days.
	SessionDurationMS int64 `yaml:"session_duration_ms,omitempty"`
}

// Service converts the on-disk shape into the auth service config.
func (a AuthConfig) Service() auth.Config {
	return auth.Config{
		RequireEmailVerification: a.RequireEmailVerification,
		OTPTriggers:              a.OTPTriggers,
		SessionDuration:          time.Duration(a.SessionDurationMS) * time.Millisecond,
	}
}

// RateLimitConfig bounds the request rate on the auth endpoints.
type RateLimitConfig struct {
	// RPS is the sustained requests per second per client.
	RPS float64 `yaml:"rps"`
	// Burst is the client's bucket size.
	Burst int `yaml:"burst"`
}

// Config is the root of the configuration file.
type Config struct {
	// Addr is the HTTP listen address.
	Addr      string          `yaml:"addr"`
	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	SMTP      email.Config    `yaml:"smtp,omitempty"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	// Schemas declares per-collection validation on top of the built-in
	// set. A collection entry here replaces its built-in schema.
	Schemas map[string]*docstore.Schema `yaml:"schemas,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Addr: ":8080",
		Store: StoreConfig{
			Backend:   BackendGit,
			Dir:       "data",
			BasePath:  "db",
			MediaPath: "media",
		},
		RateLimit: RateLimitConfig{RPS: 5, Burst: 10},
	}
}

// Load reads the configuration from path. A missing file is created with
// defaults so a fresh checkout starts without manual setup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		c := Default()
		out, err := yaml.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("encoding default config: %w", err)
		}
		if err := os.WriteFile(path, out, 0o600); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// Validate checks backend selection and fills derived defaults.
func (c *Config) Validate() error {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Store.BasePath == "" {
		c.Store.BasePath = "db"
	}
	if c.Store.MediaPath == "" {
		c.Store.MediaPath = "media"
	}
	switch c.Store.Backend {
	case BackendGitHub:
		if c.Store.Owner == "" || c.Store.Repo == "" {
			return errors.New("store: owner and repo are required for the github backend")
		}
		if c.Store.Branch == "" {
			c.Store.Branch = "main"
		}
		if c.Store.AppID != 0 {
			if c.Store.InstallationID == 0 || c.Store.PrivateKeyFile == "" {
				return errors.New("store: installation_id and private_key_file are required with app_id")
			}
		} else if c.Store.Token == "" && os.Getenv("GITHUB_TOKEN") == "" {
			return errors.New("store: a token or app credentials are required for the github backend")
		}
	case BackendGit:
		if c.Store.Dir == "" {
			return errors.New("store: dir is required for the git backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("store: unknown backend %q", c.Store.Backend)
	}
	if c.SMTP.Enabled() {
		if err := c.SMTP.Validate(); err != nil {
			return err
		}
	}
	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = 5
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 10
	}
	return nil
}
