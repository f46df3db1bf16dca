package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewPagesCmd creates the pages command.
func NewPagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages <url> [<url>...]",
		Short: "Mirror an explicit list of pages without following links",
		Long: `Pages downloads exactly the given pages plus their assets. Links on the
pages are rewritten but never followed, so the set of downloaded pages
is fully under your control.

All pages must belong to the same site; assets shared between them are
downloaded once. Use --consolidate to additionally merge all
stylesheets and scripts into single files.

Examples:
  # Mirror two specific pages
  webmirror pages https://example.com/ https://example.com/pricing

  # Read the page list from a file (one URL per line, # for comments)
  webmirror pages --list pages.txt

  # Merge assets across the page set
  webmirror pages --consolidate https://example.com/a https://example.com/b`,
		Args: cobra.ArbitraryArgs,
		RunE: runPagesCmd,
	}

	addCrawlFlags(cmd)
	addReportFlags(cmd)

	cmd.Flags().StringP("list", "l", "",
		"File with page URLs, one per line")
	cmd.Flags().Bool("consolidate", false,
		"Merge all stylesheets and scripts into single files")

	return cmd
}

// runPagesCmd executes the pages command.
func runPagesCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	cfg.Consolidate, err = cmd.Flags().GetBool("consolidate")
	if err != nil {
		return err
	}

	listFile, err := cmd.Flags().GetString("list")
	if err != nil {
		return err
	}

	cfg.PageURLs = args
	if listFile != "" {
		fromFile, err := readURLList(listFile)
		if err != nil {
			return err
		}
		cfg.PageURLs = append(cfg.PageURLs, fromFile...)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	// The first page's URL anchors the site: the allocator and the
	// same-domain check both work relative to it.
	engine, err := newEngineForTarget(cfg, cfg.PageURLs[0], cfg.OutputDir, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Mirroring %d pages...\n", len(cfg.PageURLs))
	stats, err := engine.MirrorPages(ctx, cfg.PageURLs)
	if err != nil {
		return err
	}

	if err := outputReport(cfg, stats); err != nil {
		logger.Error("report failed", "error", err)
	}

	db := openRunDB(cfg, logger)
	if db != nil {
		defer db.Close() //nolint:errcheck // Best effort cleanup
		saveRun(ctx, db, stats, engine.Resources(), logger)
	}

	return nil
}

// readURLList reads page URLs from a file, one per line.
// Blank lines and lines starting with # are skipped.
func readURLList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided list file is intentional
	if err != nil {
		return nil, fmt.Errorf("read page list: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read page list: %w", err)
	}
	return urls, nil
}
