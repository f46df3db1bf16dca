package crawler

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// PageHandler processes one page during a crawl. It receives the
// normalized page URL and returns the same-domain links discovered on
// that page. A handler error marks the page as failed; the crawl
// continues with the rest of the queue.
type PageHandler func(ctx context.Context, pageURL string) (links []string, err error)

// Spider schedules a breadth-first crawl of a single website.
// It manages a queue of URLs to visit and respects page, depth, and
// rate limits.
//
// Design decision: We call it "Spider" rather than "Crawler" because:
//  1. "Spider" is the traditional term for web crawlers
//  2. Distinguishes the component from the package name
//  3. Clearer in code: crawler.NewSpider() vs crawler.NewCrawler()
type Spider struct {
	// maxPages limits the total number of pages to visit.
	// This prevents runaway crawling on large sites.
	maxPages int

	// maxDepth limits how deep to crawl from the starting URL.
	// 0 means only the starting page, 1 means one level of links, etc.
	// Negative means unlimited.
	maxDepth int

	// delay is the time to wait between pages.
	// This is a politeness setting to avoid overwhelming servers.
	delay time.Duration

	// ignorePatterns are URL path patterns to skip during crawling.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
	ignorePatterns []string

	// visited tracks normalized URLs already handed to the handler.
	visited map[string]bool

	// pageCount counts pages handed to the handler.
	pageCount int

	// failedCount counts pages whose handler returned an error.
	failedCount int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxPages sets the maximum number of pages to visit.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		if maxPages > 0 {
			s.maxPages = maxPages
		}
	}
}

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the starting page, 1 = starting page plus linked pages, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithDelay sets the delay between pages.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// NewSpider creates a Spider with the given options.
//
// Design decision: The Spider takes no HTTP client because:
//  1. Fetching belongs to the handler, which also parses and rewrites
//  2. Scheduling stays testable with a synthetic link graph
//  3. The handler decides what a "page" is (network fetch, local file)
func NewSpider(opts ...SpiderOption) *Spider {
	s := &Spider{
		maxPages: 50,
		maxDepth: -1,
		delay:    500 * time.Millisecond,
		visited:  make(map[string]bool),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// queueItem is one entry in the crawl frontier.
type queueItem struct {
	url   string
	depth int
}

// Crawl visits pages breadth-first starting from startURL and returns
// the number of pages handed to the handler. The crawl stops when the
// queue is empty, the page cap is reached, or the context is cancelled.
// Only same-domain links returned by the handler are enqueued.
func (s *Spider) Crawl(ctx context.Context, startURL string, handler PageHandler) (int, error) {
	start, err := url.Parse(Normalize(startURL))
	if err != nil {
		return 0, fmt.Errorf("invalid start URL: %w", err)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		return 0, fmt.Errorf("invalid start URL scheme %q: %s", start.Scheme, startURL)
	}

	queue := []queueItem{{url: start.String(), depth: 0}}

	for len(queue) > 0 && s.pageCount < s.maxPages {
		select {
		case <-ctx.Done():
			return s.pageCount, ctx.Err()
		default:
		}

		item := queue[0]
		queue = queue[1:]

		if s.visited[item.url] {
			continue
		}
		s.visited[item.url] = true
		s.pageCount++

		links, err := handler(ctx, item.url)
		if err != nil {
			// Some pages will fail; the rest of the site is still worth having.
			s.failedCount++
			continue
		}

		if s.maxDepth < 0 || item.depth < s.maxDepth {
			for _, link := range links {
				normalized := Normalize(link)
				if !s.visited[normalized] && IsSameDomain(start.Host, normalized) && s.shouldCrawl(normalized) {
					queue = append(queue, queueItem{url: normalized, depth: item.depth + 1})
				}
			}
		}

		// Politeness delay
		if s.delay > 0 && len(queue) > 0 && s.pageCount < s.maxPages {
			select {
			case <-ctx.Done():
				return s.pageCount, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}

	return s.pageCount, nil
}

// Reset clears the spider's state, allowing it to be reused.
func (s *Spider) Reset() {
	s.visited = make(map[string]bool)
	s.pageCount = 0
	s.failedCount = 0
}

// Stats returns current crawl statistics.
func (s *Spider) Stats() SpiderStats {
	return SpiderStats{
		PagesVisited: s.pageCount,
		PagesFailed:  s.failedCount,
		URLsSeen:     len(s.visited),
	}
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// PagesVisited is the number of pages handed to the handler.
	PagesVisited int

	// PagesFailed is the number of pages whose handler returned an error.
	PagesFailed int

	// URLsSeen is the number of unique URLs visited so far.
	URLsSeen int
}

// shouldCrawl checks a URL against the ignore patterns.
func (s *Spider) shouldCrawl(targetURL string) bool {
	if len(s.ignorePatterns) == 0 {
		return true
	}

	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}
	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	// Prefix patterns like "/admin/*" should match the whole subtree.
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	// Extension patterns like "*.pdf" match anywhere in the tree.
	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Bare-filename patterns match against the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
