package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/webmirror/webmirror/internal/config"
	"github.com/webmirror/webmirror/internal/crawler"
	"github.com/webmirror/webmirror/internal/database"
	"github.com/webmirror/webmirror/internal/fetch"
	"github.com/webmirror/webmirror/internal/log"
	"github.com/webmirror/webmirror/internal/mirror"
	"github.com/webmirror/webmirror/internal/model"
	"github.com/webmirror/webmirror/internal/report"
)

// NewMirrorCmd creates the mirror command.
func NewMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror <url> [<url>...]",
		Short: "Recursively mirror one or more websites",
		Long: `Mirror crawls a website breadth-first from its start URL and writes a
self-contained offline copy.

Pages keep their URL path structure (about -> about/index.html), assets
land deduplicated under assets/{css,js,images,fonts,other}/, and every
reference is rewritten to a relative local path. A sitemap.html overview
page is generated at the mirror root.

With multiple URLs, each site is mirrored concurrently into its own
subdirectory of the output directory.

Examples:
  # Mirror a site into ./mirror
  webmirror mirror https://example.com

  # Larger crawl with custom output directory
  webmirror mirror -o /srv/mirrors/example -p 500 https://example.com

  # Mirror several sites at once
  webmirror mirror https://a.example.com https://b.example.com

  # Merge all stylesheets and scripts into single files
  webmirror mirror --consolidate https://example.com

Configuration file (.webmirror) example:
  sites:
    members.example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      maxPages: 200
      ignorePatterns:
        - "/logout*"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runMirrorCmd,
	}

	addCrawlFlags(cmd)
	addReportFlags(cmd)

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of sites mirrored concurrently")
	cmd.Flags().Bool("consolidate", false,
		"Merge all stylesheets and scripts into single files")

	return cmd
}

// addCrawlFlags registers the flags shared by the network mirroring commands.
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Output directory for the mirror")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"HTTP timeout for each request")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to mirror per site")
	cmd.Flags().IntP("max-depth", "d", config.DefaultMaxDepth,
		"Maximum link depth to follow (-1 for unlimited)")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Delay between page requests")
	cmd.Flags().StringSlice("ignore", nil,
		"URL path patterns to skip (e.g. '/admin/*', '*.pdf')")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header for HTTP requests")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .webmirror in current or home directory)")
	cmd.Flags().Bool("no-db", false,
		"Do not record the run in the local history database")
}

// addReportFlags registers the report output flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().String("report", "",
		"Write report to specified file path (creates directories if needed)")
}

// runMirrorCmd executes the mirror command.
func runMirrorCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Targets = args

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return err
	}
	cfg.Consolidate, err = cmd.Flags().GetBool("consolidate")
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

	return runMirror(ctx, cfg, logger)
}

// buildConfig creates a Config from the flags shared by the mirroring
// commands. Command-specific flags are read by the callers.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	cfg.OutputDir, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}
	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}
	cfg.MaxDepth, err = cmd.Flags().GetInt("max-depth")
	if err != nil {
		return nil, err
	}
	cfg.CrawlDelay, err = cmd.Flags().GetDuration("delay")
	if err != nil {
		return nil, err
	}
	cfg.IgnorePatterns, err = cmd.Flags().GetStringSlice("ignore")
	if err != nil {
		return nil, err
	}
	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return nil, err
	}
	if !noDB {
		cfg.SaveToDB = true
		cfg.DBDir = config.XDGDataDir()
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}
	cfg.ReportFile, err = cmd.Flags().GetString("report")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	// Load site-specific configurations from the config file.
	// If the user explicitly specified a config file path, error if not
	// found. Otherwise silently use an empty config.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the structured logger. Sensitive values and URL
// credentials are masked even in verbose mode.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewSecureLogger(os.Stderr, verbose)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return ctx, cancel
}

// runMirror mirrors the configured targets.
func runMirror(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db := openRunDB(cfg, logger)
	if db != nil {
		defer db.Close() //nolint:errcheck // Best effort cleanup
	}

	if len(cfg.Targets) > 1 {
		return runBatchMirror(ctx, cfg, db, logger)
	}

	target := cfg.Targets[0]
	engine, err := newEngineForTarget(cfg, target, cfg.OutputDir, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Mirroring %s...\n", target)
	stats, err := engine.Mirror(ctx)
	if err != nil {
		return err
	}

	if err := outputReport(cfg, stats); err != nil {
		logger.Error("report failed", "url", target, "error", err)
	}
	saveRun(ctx, db, stats, engine.Resources(), logger)

	return nil
}

// runBatchMirror mirrors multiple sites concurrently, each into its own
// subdirectory named after its host.
func runBatchMirror(ctx context.Context, cfg *config.Config, db *database.MirrorDB, logger *slog.Logger) error {
	fmt.Printf("Mirroring %d sites (concurrency: %d)...\n\n", len(cfg.Targets), cfg.BatchSize)
	startTime := time.Now()

	// Engines are kept so their resource ledgers can be persisted after
	// the batch completes. The factory runs from worker goroutines, so
	// the map needs a lock.
	engines := make(map[string]*mirror.Engine)
	var mu sync.Mutex

	bp := mirror.NewBatchProcessor(
		func(target string) (*mirror.Engine, error) {
			engine, err := newEngineForTarget(cfg, target, filepath.Join(cfg.OutputDir, hostDir(target)), logger)
			if err != nil {
				return nil, err
			}
			mu.Lock()
			engines[target] = engine
			mu.Unlock()
			return engine, nil
		},
		mirror.WithConcurrency(cfg.BatchSize),
		mirror.WithBatchLogger(logger),
	)

	results, err := bp.ProcessBatch(ctx, cfg.Targets)
	if err != nil {
		return err
	}

	for i, stats := range results {
		if stats == nil {
			fmt.Fprintf(os.Stderr, "[%d/%d] Mirror failed: %s\n", i+1, len(cfg.Targets), cfg.Targets[i])
			continue
		}
		fmt.Printf("[%d/%d] Mirror completed: %s\n", i+1, len(cfg.Targets), stats.BaseURL)

		if err := outputReport(cfg, stats); err != nil {
			logger.Error("report failed", "url", stats.BaseURL, "error", err)
		}
		if engine, ok := engines[cfg.Targets[i]]; ok {
			saveRun(ctx, db, stats, engine.Resources(), logger)
		}
	}

	fmt.Printf("\nBatch mirror completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	return nil
}

// newEngineForTarget builds an Engine with the merged global and
// per-site configuration applied.
func newEngineForTarget(cfg *config.Config, target, outputDir string, logger *slog.Logger) (*mirror.Engine, error) {
	siteConfig := siteConfigFor(cfg, target)

	fetchOpts := []fetch.Option{
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithUserAgent(cfg.UserAgent),
	}
	if cfg.MaxBodySize > 0 {
		fetchOpts = append(fetchOpts, fetch.WithMaxBodySize(cfg.MaxBodySize))
	}
	if siteConfig.Cookie != "" {
		fetchOpts = append(fetchOpts, fetch.WithCookie(siteConfig.Cookie))
	}
	if len(siteConfig.Headers) > 0 {
		fetchOpts = append(fetchOpts, fetch.WithHeaders(siteConfig.Headers))
	}

	maxPages := cfg.MaxPages
	if siteConfig.MaxPages > 0 {
		maxPages = siteConfig.MaxPages
	}
	delay := cfg.CrawlDelay
	if siteConfig.Delay > 0 {
		delay = time.Duration(siteConfig.Delay)
	}
	ignorePatterns := cfg.IgnorePatterns
	if len(siteConfig.IgnorePatterns) > 0 {
		ignorePatterns = append(ignorePatterns, siteConfig.IgnorePatterns...)
	}

	spider := crawler.NewSpider(
		crawler.WithMaxPages(maxPages),
		crawler.WithMaxDepth(cfg.MaxDepth),
		crawler.WithDelay(delay),
		crawler.WithIgnorePatterns(ignorePatterns),
	)

	return mirror.New(target, outputDir,
		mirror.WithLogger(logger),
		mirror.WithFetcher(fetch.NewFetcher(fetchOpts...)),
		mirror.WithSpider(spider),
		mirror.WithConsolidation(cfg.Consolidate),
	)
}

// siteConfigFor returns the merged site configuration for a target URL.
func siteConfigFor(cfg *config.Config, target string) config.SiteConfig {
	if cfg.SiteConfigs == nil {
		return config.SiteConfig{}
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return cfg.SiteConfigs.Defaults
	}
	return cfg.SiteConfigs.GetSiteConfig(u.Hostname())
}

// hostDir converts a target URL into a directory name for batch mode.
func hostDir(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return "site"
	}
	return strings.ReplaceAll(u.Host, ":", "_")
}

// openRunDB opens the history database when persistence is enabled.
// A database failure downgrades to a warning; the mirror itself matters
// more than its history entry.
func openRunDB(cfg *config.Config, logger *slog.Logger) *database.MirrorDB {
	if !cfg.SaveToDB {
		return nil
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		logger.Warn("history database unavailable", "dir", cfg.DBDir, "error", err)
		return nil
	}
	logger.Info("history database opened", "dir", cfg.DBDir)
	return db
}

// saveRun records a completed run in the history database.
// If db is nil, this function is a no-op.
func saveRun(ctx context.Context, db *database.MirrorDB, stats *model.MirrorStats, resources []*model.Resource, logger *slog.Logger) {
	if db == nil {
		return
	}

	runID, err := db.SaveRun(ctx, stats, resources)
	if err != nil {
		logger.Error("failed to save run", "url", stats.BaseURL, "error", err)
		return
	}
	logger.Info("run saved", "url", stats.BaseURL, "run_id", runID)
}

// outputReport writes the run report in the requested format.
func outputReport(cfg *config.Config, stats *model.MirrorStats) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided report path is intentional
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close() //nolint:errcheck // Best effort close on output file
		output = f
	} else {
		output = os.Stdout
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output)
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	_, err := writer.Write(stats)
	return err
}
