package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"hcext/internal/helpcentertest"
)

var (
	mockFixtures string
	mockPort     int
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Serve a fake Help Center API from fixtures",
	Long: `Serves fixture categories, sections, articles, topics and posts at the
Help Center REST paths with pagination, sideloading and label filtering.
Without --fixtures the built-in fixtures are served.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, err := loadConfig()
		if err != nil {
			return err
		}

		fixtures := helpcentertest.DefaultFixtures()
		if mockFixtures != "" {
			if fixtures, err = helpcentertest.LoadFixtures(mockFixtures); err != nil {
				return err
			}
		}

		addr := fmt.Sprintf(":%d", mockPort)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		baseURL := fmt.Sprintf("http://localhost:%d", ln.Addr().(*net.TCPAddr).Port)

		srv := &http.Server{
			Handler:           helpcentertest.NewHandler(fixtures, baseURL),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := context.WithCancel(cmd.Context())
		defer stop()

		go func() {
			logger.Info("fake help center listening", "addr", addr, "base_url", baseURL, "locale", fixtures.Locale)
			err := srv.Serve(ln)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server error", "err", err)
				stop()
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	mockCmd.Flags().StringVar(&mockFixtures, "fixtures", "", "YAML fixtures file")
	mockCmd.Flags().IntVar(&mockPort, "port", 8080, "listen port")
	rootCmd.AddCommand(mockCmd)
}
