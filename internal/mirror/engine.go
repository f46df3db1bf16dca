package mirror

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/net/html"

	"github.com/webmirror/webmirror/internal/assets"
	"github.com/webmirror/webmirror/internal/crawler"
	"github.com/webmirror/webmirror/internal/fetch"
	"github.com/webmirror/webmirror/internal/model"
	"github.com/webmirror/webmirror/internal/report"
	"github.com/webmirror/webmirror/internal/rewrite"
)

// Engine mirrors a single website into a local directory tree.
// It owns the fetch/parse/rewrite cycle for each page; the crawler only
// schedules which page comes next.
//
// Design decision: One Engine per site, not one shared Engine. The path
// allocator and the visited set are site-scoped state, and keeping them
// inside the Engine means batch mode gets isolation for free.
type Engine struct {
	// baseURL is the normalized start URL of the site.
	baseURL *url.URL

	// outputDir is where the mirror is written.
	outputDir string

	// consolidate merges stylesheets and scripts after the crawl.
	consolidate bool

	// sitemap controls whether sitemap.html is written after the run.
	sitemap bool

	logger  *slog.Logger
	fetcher *fetch.Fetcher
	spider  *crawler.Spider

	// alloc is the single source of truth for URL-to-path decisions.
	// The transformer, the consolidator, and the final statistics all
	// read from it.
	alloc       *assets.Allocator
	transformer *rewrite.Transformer

	// pages collects successfully mirrored pages in crawl order.
	pages []model.PageResult

	// attempted counts pages handed to the page handler, including
	// ones that failed to download.
	attempted int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a custom logger for the engine.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithFetcher sets the HTTP fetcher used for pages and assets.
// Use this to configure timeouts, headers, or cookies.
func WithFetcher(f *fetch.Fetcher) Option {
	return func(e *Engine) {
		e.fetcher = f
	}
}

// WithSpider sets the crawl scheduler. Use this to configure page
// limits, depth limits, delays, and ignore patterns.
func WithSpider(s *crawler.Spider) Option {
	return func(e *Engine) {
		e.spider = s
	}
}

// WithConsolidation enables merging of all stylesheets and scripts into
// single files after the mirror completes.
func WithConsolidation(enabled bool) Option {
	return func(e *Engine) {
		e.consolidate = enabled
	}
}

// WithSitemap controls whether sitemap.html is generated. Enabled by
// default; the local-file mode turns it off.
func WithSitemap(enabled bool) Option {
	return func(e *Engine) {
		e.sitemap = enabled
	}
}

// New creates an Engine for the given site.
// target must be an absolute http or https URL; outputDir is created on
// demand during the run.
func New(target, outputDir string, opts ...Option) (*Engine, error) {
	base, err := url.Parse(crawler.Normalize(target))
	if err != nil {
		return nil, fmt.Errorf("invalid target URL %q: %w", target, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid target URL scheme %q: %s", base.Scheme, target)
	}

	e := &Engine{
		baseURL:   base,
		outputDir: outputDir,
		sitemap:   true,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.fetcher == nil {
		e.fetcher = fetch.NewFetcher()
	}
	if e.spider == nil {
		e.spider = crawler.NewSpider()
	}

	e.alloc = assets.NewAllocator()
	e.transformer = rewrite.NewTransformer(e.alloc, e.fetcher, e.outputDir, base.Host, e.logger)

	return e, nil
}

// Mirror crawls the site breadth-first from its start URL and writes an
// offline copy into the output directory. It returns the run statistics
// even when some pages or assets failed; only context cancellation and
// setup failures abort the run.
func (e *Engine) Mirror(ctx context.Context) (*model.MirrorStats, error) {
	start := time.Now()

	e.logger.Info("mirror started",
		"url", e.baseURL.String(),
		"output", e.outputDir,
	)

	if _, err := e.spider.Crawl(ctx, e.baseURL.String(), e.handlePage); err != nil {
		return nil, err
	}

	return e.finish(start)
}

// MirrorPages downloads exactly the given pages plus their assets,
// without following links. Duplicate URLs are processed once. Pages that
// fail to download, and pages on a different host than the first page,
// are logged and skipped.
func (e *Engine) MirrorPages(ctx context.Context, pageURLs []string) (*model.MirrorStats, error) {
	start := time.Now()

	seen := make(map[string]bool)
	for _, raw := range pageURLs {
		pageURL := crawler.Normalize(raw)
		if seen[pageURL] {
			continue
		}
		seen[pageURL] = true

		if !crawler.IsSameDomain(e.baseURL.Host, pageURL) {
			e.logger.Warn("page skipped: different host", "url", pageURL, "host", e.baseURL.Host)
			continue
		}

		if _, err := e.handlePage(ctx, pageURL); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("page failed", "url", pageURL, "error", err)
		}
	}

	return e.finish(start)
}

// handlePage downloads, rewrites, and saves one page, returning the
// same-domain links found on it for the crawler to enqueue.
func (e *Engine) handlePage(ctx context.Context, pageURL string) ([]string, error) {
	e.attempted++

	body, err := e.fetcher.Get(ctx, pageURL)
	if err != nil {
		e.logger.Warn("page download failed", "url", pageURL, "error", err)
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	// Link extraction and rewriting share the parsed tree. Links must
	// be collected first: the transformer rewrites hrefs to local paths.
	parser, err := crawler.NewParser(pageURL)
	if err != nil {
		return nil, err
	}
	nav := parser.ParseNode(doc)

	res, err := e.transformer.Transform(ctx, doc, pageURL)
	if err != nil {
		return nil, err
	}

	if err := e.writePage(doc, res.LocalPath); err != nil {
		res.Status = model.StatusFailed
		return nil, err
	}
	res.Status = model.StatusSucceeded

	e.pages = append(e.pages, model.PageResult{
		URL:       pageURL,
		LocalPath: res.LocalPath,
		Title:     nav.Title,
		Links:     nav.InternalLinks,
		FetchedAt: time.Now(),
	})

	e.logger.Info("page mirrored",
		"url", pageURL,
		"path", res.LocalPath,
		"links", len(nav.InternalLinks),
	)

	return nav.InternalLinks, nil
}

// writePage renders the rewritten document to its allocated path.
func (e *Engine) writePage(doc *html.Node, localPath string) error {
	dest := filepath.Join(e.outputDir, filepath.FromSlash(localPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return fmt.Errorf("create page directory: %w", err)
	}

	f, err := os.Create(dest) //nolint:gosec // Path is derived from the allocator, not raw input
	if err != nil {
		return fmt.Errorf("create page file: %w", err)
	}

	if err := html.Render(f, doc); err != nil {
		f.Close() //nolint:errcheck,gosec // Render error takes precedence
		return fmt.Errorf("render page: %w", err)
	}
	return f.Close()
}

// finish runs post-crawl steps and assembles the run statistics.
func (e *Engine) finish(start time.Time) (*model.MirrorStats, error) {
	if e.consolidate {
		consolidator := rewrite.NewConsolidator(e.alloc, e.outputDir, e.logger)
		if err := consolidator.Consolidate(e.pages); err != nil {
			e.logger.Warn("consolidation failed", "error", err)
		}
	}

	stats := e.buildStats(start)

	if e.sitemap && len(e.pages) > 0 {
		if err := report.WriteSitemap(stats); err != nil {
			e.logger.Warn("sitemap generation failed", "error", err)
		}
	}

	e.logger.Info("mirror finished",
		"url", e.baseURL.String(),
		"pages", stats.PagesVisited,
		"resources", stats.ResourcesTotal,
		"failed", stats.ResourcesFailed,
		"duration", stats.Duration,
	)

	return stats, nil
}

// buildStats summarizes the run from the allocator's ledger.
func (e *Engine) buildStats(start time.Time) *model.MirrorStats {
	stats := &model.MirrorStats{
		BaseURL:      e.baseURL.String(),
		OutputDir:    e.outputDir,
		PagesVisited: e.attempted,
		Duration:     time.Since(start),
		Pages:        e.pages,
	}

	for _, res := range e.alloc.Resources() {
		if res.Category == model.CategoryHTML {
			continue
		}
		stats.ResourcesTotal++
		switch res.Status {
		case model.StatusFailed:
			stats.ResourcesFailed++
		case model.StatusSucceeded:
			switch res.Category {
			case model.CategoryCSS:
				stats.CSSFiles++
			case model.CategoryJS:
				stats.JSFiles++
			}
		}
	}

	return stats
}

// Resources returns every resource the run touched, in allocation order.
// Used for database persistence after the run.
func (e *Engine) Resources() []*model.Resource {
	return e.alloc.Resources()
}
