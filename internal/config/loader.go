package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxSettingsFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PROJECTDESK_"
)

// envAliases maps variables used by hosted Supabase tooling onto settings keys.
var envAliases = map[string]string{
	"SUPABASE_URL":           "store.url",
	"SUPABASE_ANON_KEY":      "store.anon_key",
	"VITE_SUPABASE_URL":      "store.url",
	"VITE_SUPABASE_ANON_KEY": "store.anon_key",
}

// LoadSettings reads settings from path (if present) and the environment.
//
// Precedence (highest to lowest):
//  1. PROJECTDESK_* variables (PROJECTDESK_STORE_URL -> store.url)
//  2. SUPABASE_URL / SUPABASE_ANON_KEY and their VITE_ forms
//  3. config.yaml
//  4. defaults
func LoadSettings(path string) (Settings, error) {
	k := koanf.New(".")

	if f, err := os.Open(path); err == nil {
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return Settings{}, fmt.Errorf("failed to stat settings file: %w", err)
		}
		if info.Size() > maxSettingsFileSize {
			return Settings{}, fmt.Errorf("settings file %s exceeds %d bytes", path, maxSettingsFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Settings{}, fmt.Errorf("failed to load settings file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Settings{}, fmt.Errorf("failed to open settings file: %w", err)
	}

	// Aliases return "" for every other variable, which the provider skips.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envAliases[s]
	}), nil); err != nil {
		return Settings{}, fmt.Errorf("failed to load environment aliases: %w", err)
	}

	// PROJECTDESK_SERVER_ACCESS_TOKEN_TTL -> server.access_token_ttl
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return Settings{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return Settings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	applyDefaults(&s, k)
	return s, nil
}

// applyDefaults fills values that were not set by any source.
func applyDefaults(s *Settings, k *koanf.Koanf) {
	if s.Store.URL == "" {
		s.Store.URL = "http://127.0.0.1:54321"
	}
	if s.Store.AnonKey == "" {
		s.Store.AnonKey = DefaultAnonKey
	}
	if s.Store.Timeout == 0 {
		s.Store.Timeout = 10 * time.Second
	}
	if s.Log.Format == "" {
		s.Log.Format = "console"
	}
	if s.Server.Addr == "" {
		s.Server.Addr = "127.0.0.1:54321"
	}
	if s.Server.AnonKey == "" {
		s.Server.AnonKey = DefaultAnonKey
	}
	if !k.Exists("server.autoconfirm") {
		s.Server.Autoconfirm = true
	}
	if s.Server.AccessTokenTTL == 0 {
		s.Server.AccessTokenTTL = time.Hour
	}
}
