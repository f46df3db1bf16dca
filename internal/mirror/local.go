package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/net/html"

	"github.com/webmirror/webmirror/internal/crawler"
	"github.com/webmirror/webmirror/internal/model"
)

// ErrNoBaseURL is returned when no origin can be determined for a local
// HTML file: no --base-url flag, no <base> tag, and no absolute URL
// anywhere in the document.
var ErrNoBaseURL = errors.New("cannot determine base URL: specify one with --base-url")

// MirrorLocal processes an already-downloaded HTML file: its asset
// references are resolved against the site's origin, downloaded into
// outputDir, and a rewritten copy of the page is saved alongside them.
//
// baseURL may be empty, in which case the origin is detected from the
// document itself (see DetectBaseURL).
func MirrorLocal(ctx context.Context, filePath, baseURL, outputDir string, opts ...Option) (*model.MirrorStats, error) {
	start := time.Now()

	data, err := os.ReadFile(filePath) //nolint:gosec // User-provided input file is intentional
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}

	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}

	base, err := DetectBaseURL(doc, baseURL)
	if err != nil {
		return nil, err
	}

	// A local page has no sitemap audience of its own.
	opts = append(opts, WithSitemap(false))
	e, err := New(base, outputDir, opts...)
	if err != nil {
		return nil, err
	}

	// The page is addressed as if it lived at <base>/<filename>, so the
	// allocator gives it a stable spot in the tree.
	pageURL := crawler.Normalize(crawler.Resolve(e.baseURL, filepath.Base(filePath)))

	e.attempted++
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

	return e.finish(start)
}

// DetectBaseURL determines the origin for a local HTML document.
// Priority order:
//  1. The explicit value, when non-empty
//  2. An absolute <base href> tag
//  3. The first absolute http(s) URL in any href or src attribute
//
// The original page URL is not recoverable from a saved file, so this
// is a best-effort reconstruction; an explicit value always wins.
func DetectBaseURL(doc *html.Node, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if base := findBaseHref(doc); base != "" {
		return base, nil
	}

	if origin := findFirstOrigin(doc); origin != "" {
		return origin, nil
	}

	return "", ErrNoBaseURL
}

// findBaseHref returns the first absolute <base href> value, if any.
func findBaseHref(doc *html.Node) string {
	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "base" {
			if href := getNodeAttr(n, "href"); isAbsoluteHTTP(href) {
				found = href
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

// findFirstOrigin scans href and src attributes in document order and
// returns the scheme://host origin of the first absolute URL found.
func findFirstOrigin(doc *html.Node) string {
	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode {
			for _, key := range []string{"href", "src"} {
				if val := getNodeAttr(n, key); isAbsoluteHTTP(val) {
					u, err := url.Parse(val)
					if err == nil && u.Host != "" {
						found = u.Scheme + "://" + u.Host
						return
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

// isAbsoluteHTTP reports whether s is an absolute http or https URL.
func isAbsoluteHTTP(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// getNodeAttr retrieves an attribute value from an HTML node.
func getNodeAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
