package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/webmirror/webmirror/internal/fetch"
	"github.com/webmirror/webmirror/internal/mirror"
)

// NewLocalCmd creates the local command.
func NewLocalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local <file.html>",
		Short: "Download assets for an already-saved HTML file",
		Long: `Local processes an HTML file that was saved without its assets: it
resolves the file's asset references against the site's origin,
downloads them into the output directory, and writes a rewritten copy
of the page alongside them.

The origin is taken from --base-url when given; otherwise it is
detected from the file's <base> tag or the first absolute URL found in
it.

Examples:
  # Process a saved page, detecting the origin from its content
  webmirror local saved.html

  # Specify the origin explicitly
  webmirror local --base-url https://example.com saved.html`,
		Args: cobra.ExactArgs(1),
		RunE: runLocalCmd,
	}

	addCrawlFlags(cmd)
	addReportFlags(cmd)

	cmd.Flags().String("base-url", "",
		"Origin to resolve relative references against")

	return cmd
}

// runLocalCmd executes the local command.
func runLocalCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	cfg.LocalFile = args[0]

	cfg.BaseURL, err = cmd.Flags().GetString("base-url")
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	fetchOpts := []fetch.Option{
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithUserAgent(cfg.UserAgent),
	}
	if cfg.MaxBodySize > 0 {
		fetchOpts = append(fetchOpts, fetch.WithMaxBodySize(cfg.MaxBodySize))
	}

	fmt.Printf("Processing %s...\n", cfg.LocalFile)
	stats, err := mirror.MirrorLocal(ctx, cfg.LocalFile, cfg.BaseURL, cfg.OutputDir,
		mirror.WithLogger(logger),
		mirror.WithFetcher(fetch.NewFetcher(fetchOpts...)),
	)
	if err != nil {
		return err
	}

	return outputReport(cfg, stats)
}
