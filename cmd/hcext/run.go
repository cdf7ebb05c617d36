package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"hcext/internal/dom"
	"hcext/internal/extension"
	"hcext/internal/logging"
	"hcext/internal/widgets"
)

var (
	runOut     string
	runPageURL string
)

var runCmd = &cobra.Command{
	Use:   "run <page.html>",
	Short: "Boot every widget on a page and print the resulting document",
	Long: `Parses <page.html>, constructs every registered widget found in it
(article navigation, table of contents, back to top, tabs) and writes the
rendered document to stdout or --out. Widget failures are reported after the
document is written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		doc, err := dom.Parse(f)
		f.Close()
		if err != nil {
			return err
		}
		pageURL := runPageURL
		if pageURL == "" {
			pageURL = cfg.HelpCenter.BaseURL
		}
		doc.SetURL(pageURL)

		opts := []extension.RuntimeOption{
			extension.WithLogger(logger),
			extension.WithIDPrefix(cfg.Extensions.IDPrefix),
		}
		if cfg.HelpCenter.BaseURL != "" {
			s, err := openSession(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, s.Close()) }()
			opts = append(opts, extension.WithAPI(s.client))
		}

		rt := extension.NewRuntime(doc, opts...)
		defer rt.Close()
		widgets.Register(rt, widgets.Settings{Sideloading: cfg.API.Sideloading})

		ctx := logging.WithLogger(cmd.Context(), logger)
		bootErr := rt.Boot(ctx)
		logger.Debug("widgets booted", "instances", rt.Instances(), "failures", len(multierr.Errors(bootErr)))

		out := cmd.OutOrStdout()
		if runOut != "" {
			w, err := os.Create(runOut)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, w.Close()) }()
			out = w
		}
		if err := doc.Render(out); err != nil {
			return fmt.Errorf("writing document: %w", err)
		}
		return bootErr
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "write the document to this file")
	runCmd.Flags().StringVar(&runPageURL, "url", "", "page URL used for page detection and fragments (default: help_center.base_url)")
	rootCmd.AddCommand(runCmd)
}
