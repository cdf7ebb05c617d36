package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.HelpCenter.Locale != "en-us" {
		t.Errorf("locale: got %q, want %q", cfg.HelpCenter.Locale, "en-us")
	}
	if cfg.API.PerPage != 100 || cfg.API.MaxPages != 20 {
		t.Errorf("paging: got %d/%d, want 100/20", cfg.API.PerPage, cfg.API.MaxPages)
	}
	if cfg.CacheTTL() != time.Hour {
		t.Errorf("cache ttl: got %v, want 1h", cfg.CacheTTL())
	}
	if cfg.Timeout() != 0 {
		t.Errorf("timeout: got %v, want 0", cfg.Timeout())
	}
	sc := cfg.StorageConfig(nil)
	if sc.Driver != "leveldb" || sc.LocalMax != 5*1024*1024 || sc.SessionMax != 5*1024*1024 {
		t.Errorf("storage: got %+v", sc)
	}
	if cfg.Extensions.IDPrefix != "hc-" {
		t.Errorf("id prefix: got %q, want %q", cfg.Extensions.IDPrefix, "hc-")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hcext.yaml")

	original := DefaultConfig()
	original.HelpCenter.BaseURL = "https://support.example.com"
	original.HelpCenter.Locale = "de"
	original.API.CacheTTL = "10m"
	original.API.Timeout = "5s"
	original.Storage.Local.Driver = "sqlite"
	original.Storage.Local.Path = filepath.Join(t.TempDir(), "store.db")
	original.Log.Format = "json"

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.HelpCenter.BaseURL != original.HelpCenter.BaseURL {
		t.Errorf("base_url: got %q, want %q", loaded.HelpCenter.BaseURL, original.HelpCenter.BaseURL)
	}
	if loaded.HelpCenter.Locale != "de" {
		t.Errorf("locale: got %q, want %q", loaded.HelpCenter.Locale, "de")
	}
	if loaded.CacheTTL() != 10*time.Minute {
		t.Errorf("cache ttl: got %v, want 10m", loaded.CacheTTL())
	}
	if loaded.Timeout() != 5*time.Second {
		t.Errorf("timeout: got %v, want 5s", loaded.Timeout())
	}
	if loaded.Storage.Local.Driver != "sqlite" {
		t.Errorf("driver: got %q, want sqlite", loaded.Storage.Local.Driver)
	}
	if loaded.Log.Format != "json" {
		t.Errorf("log format: got %q, want json", loaded.Log.Format)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.PerPage != 100 {
		t.Errorf("per_page: got %d, want 100", cfg.API.PerPage)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hcext.yaml")
	if err := os.WriteFile(path, []byte("api:\n  per_page: 30\nstorage:\n  local:\n    driver: memory\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HCEXT_API__PER_PAGE", "50")
	t.Setenv("HCEXT_HELP_CENTER__SIGNED_IN", "true")
	t.Setenv("HCEXT_DEBUG", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.PerPage != 50 {
		t.Errorf("per_page: got %d, want 50", cfg.API.PerPage)
	}
	if !cfg.HelpCenter.SignedIn {
		t.Error("signed_in: got false, want true")
	}
	if !cfg.Debug || !cfg.StorageConfig(nil).Debug {
		t.Error("debug: got false, want true")
	}
	if cfg.Storage.Local.Driver != "memory" {
		t.Errorf("driver: got %q, want memory", cfg.Storage.Local.Driver)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"relative base url", func(c *Config) { c.HelpCenter.BaseURL = "/hc" }, "help_center.base_url"},
		{"empty locale", func(c *Config) { c.HelpCenter.Locale = "" }, "help_center.locale"},
		{"zero per page", func(c *Config) { c.API.PerPage = 0 }, "api.per_page"},
		{"bad ttl", func(c *Config) { c.API.CacheTTL = "soon" }, "api.cache_ttl"},
		{"bad timeout", func(c *Config) { c.API.Timeout = "10" }, "api.timeout"},
		{"unknown driver", func(c *Config) { c.Storage.Local.Driver = "redis" }, "storage.local.driver"},
		{"missing path", func(c *Config) { c.Storage.Local.Path = "" }, "storage.local.path"},
		{"bad size", func(c *Config) { c.Storage.Session.Max = "lots" }, "storage.session.max"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestClientOptionsTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.Timeout = "2s"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := len(cfg.ClientOptions(nil, nil)); got != 6 {
		t.Fatalf("ClientOptions = %d options, want 6", got)
	}
}
