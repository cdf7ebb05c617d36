package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"hcext/internal/api"
	"hcext/internal/config"
	"hcext/internal/storage"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "hcext",
	Short: "Headless Help Center theme extension runtime",
	Long: `hcext runs Help Center theme widgets against HTML pages without a browser.
It fetches and caches Help Center API data, renders micro-templates and
serves a fake Help Center for theme development.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", getenvDefault("HCEXT_CONFIG", "hcext.yaml"), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func getenvDefault(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}

// loadConfig reads the config file and builds the logger it describes.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// session bundles the API client with the store backing its cache.
type session struct {
	client *api.Client
	store  *storage.Store
}

func (s *session) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// openSession opens the configured store and an API client for the
// configured Help Center.
func openSession(cfg *config.Config, logger *slog.Logger) (*session, error) {
	if cfg.HelpCenter.BaseURL == "" {
		return nil, fmt.Errorf("help_center.base_url is required")
	}
	store, err := storage.Open(cfg.StorageConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	client, err := api.New(cfg.HelpCenter.BaseURL, cfg.ClientOptions(store, logger)...)
	if err != nil {
		return nil, multierr.Append(err, store.Close())
	}
	return &session{client: client, store: store}, nil
}
