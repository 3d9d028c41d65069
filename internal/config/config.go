// Package config handles the XDG configuration directory, its files and settings.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

const (
	// AppName is the application directory name.
	AppName = "projectdesk"

	// SessionFile is the persisted session filename.
	SessionFile = "session.json"

	// SettingsFile is the optional YAML settings filename.
	SettingsFile = "config.yaml"

	// DevStoreFile is the dev store's default SQLite database filename.
	DevStoreFile = "devstore.db"

	// DefaultAnonKey is the anon key the dev store accepts unless configured otherwise.
	DefaultAnonKey = "local-anon-key"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// Settings are loaded from config.yaml and the environment.
	Settings Settings
}

// Settings are the tunable values. Field tags are the config.yaml keys.
type Settings struct {
	Store  StoreSettings  `koanf:"store"`
	Notify NotifySettings `koanf:"notify"`
	Log    LogSettings    `koanf:"log"`
	Server ServerSettings `koanf:"server"`
}

// StoreSettings locate the remote store.
type StoreSettings struct {
	URL     string        `koanf:"url"`
	AnonKey string        `koanf:"anon_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// NotifySettings configure the session revocation relay. Empty URL disables it.
type NotifySettings struct {
	NATSURL string `koanf:"nats_url"`
}

// LogSettings configure logging.
type LogSettings struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ServerSettings configure the dev store started by `projectdesk serve`.
type ServerSettings struct {
	Addr           string        `koanf:"addr"`
	DBPath         string        `koanf:"db_path"`
	AnonKey        string        `koanf:"anon_key"`
	Autoconfirm    bool          `koanf:"autoconfirm"`
	AccessTokenTTL time.Duration `koanf:"access_token_ttl"`
}

// New creates a new Config with the default or specified config directory
// and loads its settings.
// If configDir is empty, uses XDG_CONFIG_HOME/projectdesk or $HOME/.config/projectdesk.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{Dir: dir}
	settings, err := LoadSettings(cfg.SettingsPath())
	if err != nil {
		return nil, err
	}
	cfg.Settings = settings
	return cfg, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// SessionPath returns the path to the persisted session file.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Dir, SessionFile)
}

// SettingsPath returns the path to config.yaml.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, SettingsFile)
}

// DevStorePath returns the dev store database path, honouring server.db_path.
func (c *Config) DevStorePath() string {
	if c.Settings.Server.DBPath != "" {
		return c.Settings.Server.DBPath
	}
	return filepath.Join(c.Dir, DevStoreFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasSession checks if the session file exists.
func (c *Config) HasSession() bool {
	_, err := os.Stat(c.SessionPath())
	return err == nil
}

// RemoveSession deletes the session file. A missing file is not an error.
func (c *Config) RemoveSession() error {
	err := os.Remove(c.SessionPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ValidateStore checks the settings needed to talk to the store.
func (c *Config) ValidateStore() error {
	u, err := url.Parse(c.Settings.Store.URL)
	if err != nil {
		return fmt.Errorf("invalid store url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid store url %q: scheme must be http or https", c.Settings.Store.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid store url %q: missing host", c.Settings.Store.URL)
	}
	if c.Settings.Store.AnonKey == "" {
		return fmt.Errorf("store anon key not set (set PROJECTDESK_STORE_ANON_KEY)")
	}
	if c.Settings.Store.Timeout <= 0 {
		return fmt.Errorf("store timeout must be positive")
	}
	return nil
}
