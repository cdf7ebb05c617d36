package config

import "time"

// Config is the top-level hcext configuration, corresponding to hcext.yaml.
type Config struct {
	HelpCenter HelpCenterConfig `yaml:"help_center" koanf:"help_center"`
	API        APIConfig        `yaml:"api" koanf:"api"`
	Storage    StorageConfig    `yaml:"storage" koanf:"storage"`
	Extensions ExtensionsConfig `yaml:"extensions" koanf:"extensions"`
	Debug      bool             `yaml:"debug" koanf:"debug"`
	Log        LogConfig        `yaml:"log" koanf:"log"`
}

// HelpCenterConfig identifies the Help Center the API client talks to.
type HelpCenterConfig struct {
	BaseURL  string `yaml:"base_url" koanf:"base_url"`
	Locale   string `yaml:"locale" koanf:"locale"`
	SignedIn bool   `yaml:"signed_in" koanf:"signed_in"`
}

// APIConfig tunes requests and response caching.
type APIConfig struct {
	PerPage  int    `yaml:"per_page" koanf:"per_page"`
	MaxPages int    `yaml:"max_pages" koanf:"max_pages"`
	CacheTTL string `yaml:"cache_ttl" koanf:"cache_ttl"`
	// Timeout bounds each request; empty means no deadline.
	Timeout      string `yaml:"timeout" koanf:"timeout"`
	SessionCache bool   `yaml:"session_cache" koanf:"session_cache"`
	Sideloading  bool   `yaml:"sideloading" koanf:"sideloading"`

	// compiled
	cacheTTL time.Duration
	timeout  time.Duration
}

// StorageConfig selects the storage backends.
type StorageConfig struct {
	Local struct {
		Driver string `yaml:"driver" koanf:"driver"`
		Path   string `yaml:"path" koanf:"path"`
		Max    string `yaml:"max" koanf:"max"`
	} `yaml:"local" koanf:"local"`
	Session struct {
		Max string `yaml:"max" koanf:"max"`
	} `yaml:"session" koanf:"session"`

	// compiled
	localMax   int64
	sessionMax int64
}

// ExtensionsConfig configures the widget runtime.
type ExtensionsConfig struct {
	IDPrefix string `yaml:"id_prefix" koanf:"id_prefix"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}
