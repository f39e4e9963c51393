package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AuthConfig identifies this client against the volunteer-events service.
type AuthConfig struct {
	// UserID is the organizer identity stamped onto created events.
	UserID string `yaml:"user_id" json:"user_id"`
	// Token is an optional bearer token for the events service.
	Token string `yaml:"token" json:"token"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the local Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// SnapshotConfig controls the headless map snapshot rendered for
// /preview.png.
type SnapshotConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Width   int  `yaml:"width" json:"width"`
	Height  int  `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// ServerURL is the base URL of the remote volunteer-events service,
	// e.g. "https://events.example.org/api".
	ServerURL string `yaml:"server_url" json:"server_url"`

	// Timezone is the IANA timezone used for listing and feed output.
	Timezone string `yaml:"timezone" json:"timezone"`

	// HorizonDays is how many future days of occurrences to expose.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// RefreshCron is a cron-style schedule (e.g. "*/15 * * * *") for the
	// background events refresh and snapshot re-render.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir is where the durable per-key response cache lives.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// LogLevel is "debug", "info" or "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Auth identifies this client against the events service.
	Auth AuthConfig `yaml:"auth" json:"auth"`

	// Snapshot controls the chromedp map snapshot.
	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// local endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		ServerURL:   "http://127.0.0.1:9090/api",
		Timezone:    "UTC",
		HorizonDays: 30,
		RefreshCron: "*/15 * * * *",
		CacheDir:    "/var/lib/volpin/cache",
		LogLevel:    "info",
		Snapshot: SnapshotConfig{
			Enabled: false,
			Width:   1280,
			Height:  800,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.ServerURL == "" {
		c.ServerURL = "http://127.0.0.1:9090/api"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 30
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.CacheDir == "" {
		c.CacheDir = "/var/lib/volpin/cache"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = 1280
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = 800
	}
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there (parent
// directory created, 0600 perms) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration to path atomically (temp file + rename)
// with 0600 permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".volpin-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// PreviewPath is where the rendered map snapshot lives on disk; shared
// by the capture pipeline and the /preview.png handler.
func (c *Config) PreviewPath() string {
	return filepath.Join(c.CacheDir, "preview.png")
}
