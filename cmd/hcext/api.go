package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"hcext/internal/api"
)

var (
	getProperties     []string
	requestProperties []string
	requestNoCache    bool
)

var getCmd = &cobra.Command{
	Use:   "get <types...>",
	Short: "Fetch Help Center objects and print them as JSON",
	Long: `Fetches the given object types (articles, sections, categories, posts,
topics) with as few requests as sideloading allows and prints the merged
response.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *session, logger *slog.Logger) error {
			resp, err := s.client.Get(ctx, args, getProperties)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp, s.client, logger)
		})
	},
}

var requestCmd = &cobra.Command{
	Use:   "request <url>",
	Short: "Fetch a single API listing and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *session, logger *slog.Logger) error {
			resp, err := s.client.Request(ctx, args[0], requestProperties, !requestNoCache)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp, s.client, logger)
		})
	},
}

func init() {
	getCmd.Flags().StringSliceVar(&getProperties, "properties", nil, "object properties to keep (default: per endpoint)")
	requestCmd.Flags().StringSliceVar(&requestProperties, "properties", nil, "object properties to keep")
	requestCmd.Flags().BoolVar(&requestNoCache, "no-cache", false, "bypass the response cache")
	rootCmd.AddCommand(getCmd, requestCmd)
}

// withSession loads config, opens a session and runs fn.
func withSession(ctx context.Context, fn func(context.Context, *session, *slog.Logger) error) (err error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openSession(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, s.Close()) }()
	return fn(ctx, s, logger)
}

func printResponse(w io.Writer, resp api.Response, client *api.Client, logger *slog.Logger) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	logger.Debug("api stats", "stats", client.Stats().String())
	return nil
}
