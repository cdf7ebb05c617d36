// Package config loads hcext settings from a YAML file and HCEXT_*
// environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"hcext/internal/api"
	"hcext/internal/logging"
	"hcext/internal/storage"
)

// EnvPrefix starts every environment override. Nested keys are joined with
// a double underscore: HCEXT_API__PER_PAGE sets api.per_page.
const EnvPrefix = "HCEXT_"

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() *Config {
	cfg := &Config{
		HelpCenter: HelpCenterConfig{Locale: "en-us"},
		API: APIConfig{
			PerPage:      api.DefaultPerPage,
			MaxPages:     api.DefaultMaxPages,
			CacheTTL:     "1h",
			SessionCache: true,
		},
		Extensions: ExtensionsConfig{IDPrefix: "hc-"},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
	cfg.Storage.Local.Driver = "leveldb"
	cfg.Storage.Local.Path = "./data/storage"
	cfg.Storage.Local.Max = "5mb"
	cfg.Storage.Session.Max = "5mb"
	return cfg
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides. A missing file yields the defaults.
// The result is validated.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validDrivers = map[string]bool{"memory": true, "leveldb": true, "sqlite": true}

// Validate checks values and parses durations and sizes.
func (c *Config) Validate() error {
	if c.HelpCenter.BaseURL != "" {
		u, err := url.Parse(c.HelpCenter.BaseURL)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("help_center.base_url must be an absolute URL, got %q", c.HelpCenter.BaseURL)
		}
	}
	if c.HelpCenter.Locale == "" {
		return fmt.Errorf("help_center.locale is required")
	}
	c.HelpCenter.Locale = strings.ToLower(c.HelpCenter.Locale)

	if c.API.PerPage <= 0 {
		return fmt.Errorf("api.per_page must be positive")
	}
	if c.API.MaxPages <= 0 {
		return fmt.Errorf("api.max_pages must be positive")
	}
	d, err := time.ParseDuration(c.API.CacheTTL)
	if err != nil {
		return fmt.Errorf("api.cache_ttl: %w", err)
	}
	c.API.cacheTTL = d
	c.API.timeout = 0
	if c.API.Timeout != "" {
		d, err := time.ParseDuration(c.API.Timeout)
		if err != nil {
			return fmt.Errorf("api.timeout: %w", err)
		}
		c.API.timeout = d
	}

	if !validDrivers[c.Storage.Local.Driver] {
		return fmt.Errorf("invalid storage.local.driver %q: must be one of memory, leveldb, sqlite", c.Storage.Local.Driver)
	}
	if c.Storage.Local.Driver != "memory" && c.Storage.Local.Path == "" {
		return fmt.Errorf("storage.local.path is required for driver %s", c.Storage.Local.Driver)
	}
	if c.Storage.localMax, err = storage.ParseBytes(c.Storage.Local.Max); err != nil {
		return fmt.Errorf("storage.local.max: %w", err)
	}
	if c.Storage.sessionMax, err = storage.ParseBytes(c.Storage.Session.Max); err != nil {
		return fmt.Errorf("storage.session.max: %w", err)
	}

	if _, err := logging.New(io.Discard, c.Log.Level, c.Log.Format); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// CacheTTL returns the parsed api.cache_ttl.
func (c *Config) CacheTTL() time.Duration { return c.API.cacheTTL }

// Timeout returns the parsed api.timeout, zero when unset.
func (c *Config) Timeout() time.Duration { return c.API.timeout }

// Logger builds the configured logger writing to w. Debug mode forces the
// debug level.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	level := c.Log.Level
	if c.Debug {
		level = "debug"
	}
	return logging.New(w, level, c.Log.Format)
}

// StorageConfig returns the options for storage.Open.
func (c *Config) StorageConfig(logger *slog.Logger) storage.Config {
	return storage.Config{
		Driver:     c.Storage.Local.Driver,
		Path:       c.Storage.Local.Path,
		LocalMax:   c.Storage.localMax,
		SessionMax: c.Storage.sessionMax,
		Debug:      c.Debug,
		Logger:     logger,
	}
}

// ClientOptions returns the api.Client options for the configured Help
// Center, caching through store when it is not nil.
func (c *Config) ClientOptions(store *storage.Store, logger *slog.Logger) []api.Option {
	opts := []api.Option{
		api.WithLocale(c.HelpCenter.Locale),
		api.WithSignedIn(c.HelpCenter.SignedIn),
		api.WithPerPage(c.API.PerPage),
		api.WithMaxPages(c.API.MaxPages),
		api.WithCacheTTL(c.API.cacheTTL),
	}
	if logger != nil {
		opts = append(opts, api.WithLogger(logger))
	}
	if store != nil {
		opts = append(opts, api.WithStore(store, c.API.SessionCache))
	}
	if c.API.timeout > 0 {
		opts = append(opts, api.WithHTTPClient(&http.Client{Timeout: c.API.timeout}))
	}
	return opts
}
