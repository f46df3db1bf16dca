package rewrite

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/webmirror/webmirror/internal/assets"
	"github.com/webmirror/webmirror/internal/crawler"
	"github.com/webmirror/webmirror/internal/model"
)

// Transformer rewrites a parsed page for offline browsing: every asset
// reference is downloaded and pointed at its local file, and every
// same-domain navigation link is pointed at the target page's allocated
// path, whether or not that page has been crawled yet.
//
// Design decision: Navigation links are rewritten from the allocator's
// deterministic path function, not from crawl results, because:
//  1. Pages link forward to pages the crawl has not reached yet
//  2. The path for a URL never depends on crawl order
//  3. A link to a page beyond the page cap degrades to a dead relative
//     link instead of silently leaving the mirror
type Transformer struct {
	store    *store
	css      *CSSRewriter
	alloc    *assets.Allocator
	baseHost string
	logger   *slog.Logger
}

// NewTransformer creates a Transformer. baseHost is the mirrored site's
// host; only links to it are rewritten as navigation. Assets are
// localized regardless of host, CDNs included.
func NewTransformer(alloc *assets.Allocator, fetcher Downloader, outputDir, baseHost string, logger *slog.Logger) *Transformer {
	st := &store{
		alloc:     alloc,
		fetcher:   fetcher,
		outputDir: outputDir,
		logger:    logger,
	}
	return &Transformer{
		store:    st,
		css:      &CSSRewriter{store: st, logger: logger},
		alloc:    alloc,
		baseHost: baseHost,
		logger:   logger,
	}
}

// CSS returns the rewriter sharing this transformer's allocator, for
// callers that process stylesheets outside a page (consolidation).
func (t *Transformer) CSS() *CSSRewriter {
	return t.css
}

// Transform rewrites doc in place for the page at pageURL and returns
// the page's allocated resource record. Single-resource failures are
// logged and leave the original reference; only an unparseable URL is
// an error.
func (t *Transformer) Transform(ctx context.Context, doc *html.Node, pageURL string) (*model.Resource, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	page := t.alloc.Allocate(crawler.Normalize(pageURL), model.CategoryHTML)
	pageDir := path.Dir(page.LocalPath)
	if pageDir == "." {
		pageDir = ""
	}

	// A <base> element would re-anchor every relative path we emit.
	var baseTags []*html.Node

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "base":
				baseTags = append(baseTags, n)
			case "link":
				t.rewriteLinkElement(ctx, n, base, pageDir)
			case "script":
				t.rewriteAttr(ctx, n, "src", base, pageDir, model.CategoryJS)
			case "img":
				t.rewriteAttr(ctx, n, "src", base, pageDir, model.CategoryImage)
				t.rewriteAttr(ctx, n, "data-src", base, pageDir, model.CategoryImage)
				t.rewriteAttr(ctx, n, "data-lazy-src", base, pageDir, model.CategoryImage)
				t.rewriteSrcset(ctx, n, base, pageDir)
			case "source":
				t.rewriteAttr(ctx, n, "src", base, pageDir, assets.CategoryAuto)
				t.rewriteSrcset(ctx, n, base, pageDir)
			case "video":
				t.rewriteAttr(ctx, n, "poster", base, pageDir, model.CategoryImage)
				t.rewriteAttr(ctx, n, "src", base, pageDir, assets.CategoryAuto)
			case "audio":
				t.rewriteAttr(ctx, n, "src", base, pageDir, assets.CategoryAuto)
			case "a":
				t.rewriteNavLink(n, base, pageDir)
			}

			if style := getAttr(n, "style"); style != "" && strings.Contains(style, "url(") {
				setAttr(n, "style", t.css.Rewrite(ctx, style, base, pageDir))
			}
		}

		if n.Type == html.ElementNode && n.Data == "style" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				n.FirstChild.Data = t.css.Rewrite(ctx, n.FirstChild.Data, base, pageDir)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, n := range baseTags {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}

	return page, nil
}

// rewriteLinkElement handles <link>: stylesheets get the full CSS
// treatment, icons are plain image assets, everything else is left.
func (t *Transformer) rewriteLinkElement(ctx context.Context, n *html.Node, base *url.URL, pageDir string) {
	href := getAttr(n, "href")
	if href == "" {
		return
	}

	rel := strings.ToLower(getAttr(n, "rel"))
	switch {
	case strings.Contains(rel, "stylesheet"):
		abs := crawler.Resolve(base, href)
		if abs == "" {
			return
		}
		if res, ok := t.css.EnsureStylesheet(ctx, abs); ok {
			setAttr(n, "href", RelativePath(pageDir, res.LocalPath))
		} else {
			setAttr(n, "href", abs)
		}
	case rel == "icon" || rel == "shortcut icon" || rel == "apple-touch-icon":
		t.rewriteAttr(ctx, n, "href", base, pageDir, model.CategoryImage)
	}
}

// rewriteAttr localizes one URL-valued attribute. On download failure
// the attribute is set to the resolved absolute URL so the reference
// still works online.
func (t *Transformer) rewriteAttr(ctx context.Context, n *html.Node, attr string, base *url.URL, pageDir string, category model.Category) {
	val := getAttr(n, attr)
	if val == "" || strings.HasPrefix(val, "data:") {
		return
	}

	abs := crawler.Resolve(base, val)
	if abs == "" {
		return
	}

	if res, ok := t.store.ensure(ctx, abs, category); ok {
		setAttr(n, attr, RelativePath(pageDir, res.LocalPath))
	} else {
		setAttr(n, attr, abs)
	}
}

// rewriteSrcset localizes every candidate in a srcset attribute while
// preserving width/density descriptors verbatim and in order.
func (t *Transformer) rewriteSrcset(ctx context.Context, n *html.Node, base *url.URL, pageDir string) {
	val := getAttr(n, "srcset")
	if val == "" {
		return
	}

	entries := strings.Split(val, ",")
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		urlPart, descriptor := entry, ""
		if i := strings.LastIndexAny(entry, " \t"); i >= 0 {
			urlPart, descriptor = strings.TrimSpace(entry[:i]), entry[i+1:]
		}

		if abs := crawler.Resolve(base, urlPart); abs != "" && !strings.HasPrefix(urlPart, "data:") {
			if res, ok := t.store.ensure(ctx, abs, model.CategoryImage); ok {
				urlPart = RelativePath(pageDir, res.LocalPath)
			} else {
				urlPart = abs
			}
		}

		if descriptor != "" {
			out = append(out, urlPart+" "+descriptor)
		} else {
			out = append(out, urlPart)
		}
	}

	setAttr(n, "srcset", strings.Join(out, ", "))
}

// rewriteNavLink points a same-domain <a href> at the target page's
// allocated local path, preserving any fragment. External links and
// non-navigational schemes are left untouched.
func (t *Transformer) rewriteNavLink(n *html.Node, base *url.URL, pageDir string) {
	href := getAttr(n, "href")
	if href == "" || strings.HasPrefix(href, "#") {
		return
	}

	abs := crawler.Resolve(base, href)
	if abs == "" {
		return
	}
	if !crawler.IsSameDomain(t.baseHost, abs) {
		return
	}

	// Schemes like ftp: or ws: resolve to URLs the same-domain check
	// can let through; only web pages get a local path.
	u, err := url.Parse(abs)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return
	}
	fragment := u.Fragment

	target := t.alloc.Allocate(crawler.Normalize(abs), model.CategoryHTML)
	local := RelativePath(pageDir, target.LocalPath)
	if fragment != "" {
		local += "#" + fragment
	}
	setAttr(n, "href", local)
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val
		}
	}
	return ""
}

// setAttr replaces or adds an attribute on an HTML node.
func setAttr(n *html.Node, key, val string) {
	for i, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
