package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are chosen to mirror typical public websites politely
// without tripping rate limits or wandering forever.
const (
	// DefaultTimeout is set to 30 seconds. Most clearnet pages and assets
	// respond well within that; a longer timeout just delays the
	// inevitable failure report for a dead resource.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxPages is the maximum number of pages to mirror per site.
	// This prevents runaway crawling on large or infinitely-generating
	// sites (calendars, faceted search). Users can override this via the
	// --max-pages CLI flag.
	DefaultMaxPages = 50

	// DefaultMaxDepth of -1 means unlimited crawl depth. The page cap
	// is the primary safety valve; bounding depth as well mostly hides
	// deep but legitimate content. Use --max-depth to bound it.
	DefaultMaxDepth = -1

	// DefaultBatchSize of 4 concurrent sites balances throughput with
	// resource usage when mirroring from a target list. Each site already
	// downloads its assets sequentially, so a small batch is enough.
	DefaultBatchSize = 4

	// AppName is the application name used for XDG directory paths.
	AppName = "webmirror"

	// DefaultCrawlDelay is the delay between page requests during
	// crawling. This is a politeness setting to avoid overwhelming the
	// target server. Can be adjusted via the --delay CLI flag.
	DefaultCrawlDelay = 500 * time.Millisecond

	// DefaultUserAgent identifies the mirror tool in HTTP requests.
	// Using a descriptive User-Agent is good practice and allows site
	// operators to identify mirror traffic in their logs.
	DefaultUserAgent = "webmirror/1.0 (+https://github.com/webmirror/webmirror)"

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 50MB accommodates large images and video posters while preventing
	// memory exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 50 * 1024 * 1024 // 50MB

	// DefaultOutputDir is where the mirror lands when --output is not
	// given. Relative to the current working directory.
	DefaultOutputDir = "mirror"

	// DefaultRepairConcurrency is the number of HTML files repaired in
	// parallel by the link fixer. Link repair is disk-bound, so a small
	// worker count is sufficient.
	DefaultRepairConcurrency = 4
)

// Config holds all configuration options for the mirror tool.
// This struct is designed to be populated from CLI flags and the optional
// YAML config file, then passed through the application via dependency
// injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
// If the configuration grows significantly, consider refactoring into sub-structs.
type Config struct {
	// Targets is the list of site URLs to mirror. Each target is crawled
	// into its own directory when more than one is given.
	Targets []string

	// PageURLs is an explicit list of page URLs to mirror without
	// following links. When set, the recursive crawler is bypassed and
	// exactly these pages (plus their assets) are downloaded.
	PageURLs []string

	// LocalFile is a path to an already-downloaded HTML file to process
	// offline. Assets referenced by the file are fetched and the file is
	// rewritten in place into OutputDir.
	LocalFile string

	// BaseURL is the origin used to resolve relative references when
	// processing a local file. If empty, the tool falls back to the
	// file's <base> tag and then to the first absolute URL found in it.
	BaseURL string

	// OutputDir is the directory the mirror is written into.
	// Created if it does not exist.
	OutputDir string

	// Timeout is the HTTP timeout for each request. This applies to
	// individual requests, not the overall mirror duration.
	Timeout time.Duration

	// MaxPages is the maximum number of pages to crawl per site.
	// This prevents runaway crawling on large or infinitely-generating
	// sites. A value of 0 means use the default (DefaultMaxPages).
	MaxPages int

	// MaxDepth is the maximum link depth followed from the start page.
	// Negative means unlimited; the page cap still applies.
	MaxDepth int

	// CrawlDelay is the delay between page requests during crawling.
	// This is a "politeness" setting to avoid overwhelming the target.
	// Lower values may cause rate limiting or service disruption.
	CrawlDelay time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	// A descriptive User-Agent helps site operators identify mirror traffic.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated to prevent memory exhaustion.
	// Set to 0 to use the default (50MB).
	MaxBodySize int64

	// IgnorePatterns are URL path globs skipped during crawling,
	// e.g. "/admin/*" or "*.pdf".
	IgnorePatterns []string

	// Consolidate merges all downloaded stylesheets into a single
	// assets/css/all-styles.css and all scripts into
	// assets/js/all-scripts.js, rewriting pages to reference them.
	Consolidate bool

	// BatchSize is the number of sites mirrored concurrently when
	// processing multiple targets. Higher values increase throughput but
	// may overwhelm local bandwidth.
	BatchSize int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .webmirror in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the
	// config file. This is populated by LoadConfigFile and consulted
	// per target host during mirroring.
	SiteConfigs *File

	// JSONReport enables JSON report output instead of the human-readable
	// summary. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output with tables and a
	// resource breakdown chart. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// DBDir is the directory path for storing the SQLite database.
	// When set, run results are saved for historical comparison.
	// When empty, run results are not persisted.
	// Defaults to the XDG data directory (~/.local/share/webmirror on Linux).
	DBDir string

	// SaveToDB indicates whether to save run results to the database.
	// This is automatically set to true when DBDir is configured.
	SaveToDB bool

	// ReplacementURL, when set, is the absolute URL that the link
	// repairer substitutes for every broken reference it finds.
	// Mutually exclusive with FallbackPage.
	ReplacementURL string

	// FallbackPage is a path inside the mirror (relative to its root)
	// that broken references are rewritten to point at, using a relative
	// path computed from each page's location.
	FallbackPage string

	// RepairBackup controls whether the link repairer writes an
	// .orig.backup sidecar before modifying each file.
	RepairBackup bool

	// RepairConcurrency is the number of files the link repairer
	// processes in parallel. Zero means DefaultRepairConcurrency.
	RepairConcurrency int
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, delays).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		OutputDir:         DefaultOutputDir,
		Timeout:           DefaultTimeout,
		MaxPages:          DefaultMaxPages,
		MaxDepth:          DefaultMaxDepth,
		BatchSize:         DefaultBatchSize,
		CrawlDelay:        DefaultCrawlDelay,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		RepairBackup:      true,
		RepairConcurrency: DefaultRepairConcurrency,
	}
}

// XDGDataDir returns the XDG data directory for the mirror tool.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/webmirror
// On macOS: ~/Library/Application Support/webmirror
// On Windows: %LOCALAPPDATA%\webmirror
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for the mirror tool.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.config/webmirror
// On macOS: ~/Library/Application Support/webmirror
// On Windows: %APPDATA%\webmirror
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for the mirror tool.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.cache/webmirror
// On macOS: ~/Library/Caches/webmirror
// On Windows: %LOCALAPPDATA%\webmirror\cache
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any mirroring begins.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	// We must have something to mirror: a crawl target, an explicit
	// page list, or a local file.
	if len(c.Targets) == 0 && len(c.PageURLs) == 0 && c.LocalFile == "" {
		return ErrNoTarget
	}

	// Timeout must be positive; zero timeout would cause immediate failures
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	// BatchSize must be positive; zero would mean no mirroring
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	// JSONReport and MarkdownReport are mutually exclusive
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	// CrawlDelay must be non-negative
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	// MaxBodySize must be non-negative; zero falls back to the default
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	// A replacement URL and a fallback page are two answers to the same
	// question; the repairer cannot honor both.
	if c.ReplacementURL != "" && c.FallbackPage != "" {
		return ErrConflictingRepairTargets
	}

	return nil
}
