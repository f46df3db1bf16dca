package rewrite

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/webmirror/webmirror/internal/assets"
	"github.com/webmirror/webmirror/internal/crawler"
	"github.com/webmirror/webmirror/internal/model"
)

// cssURLRef matches url(...) references in CSS, quoted or unquoted.
// The capture excludes quotes, closing parens, and whitespace.
var cssURLRef = regexp.MustCompile(`url\(['"]?([^'")\s]+)['"]?\)`)

// maxImportDepth bounds recursion through stylesheet @import chains.
// Real sites rarely nest past two; a cycle would otherwise recurse
// until the allocator memoization breaks it, so we cap explicitly.
const maxImportDepth = 4

// CSSRewriter localizes stylesheets: every url(...) reference is
// downloaded through the shared allocator and replaced with a path
// relative to the stylesheet's own directory.
type CSSRewriter struct {
	store  *store
	logger *slog.Logger
}

// NewCSSRewriter creates a CSSRewriter sharing the given allocator.
func NewCSSRewriter(alloc *assets.Allocator, fetcher Downloader, outputDir string, logger *slog.Logger) *CSSRewriter {
	return &CSSRewriter{
		store: &store{
			alloc:     alloc,
			fetcher:   fetcher,
			outputDir: outputDir,
			logger:    logger,
		},
		logger: logger,
	}
}

// EnsureStylesheet downloads the stylesheet at absURL, rewrites its
// references, and writes it to its allocated path. Returns the record
// and whether the local file is usable. Memoized through the allocator:
// a stylesheet linked from many pages is processed once.
func (r *CSSRewriter) EnsureStylesheet(ctx context.Context, absURL string) (*model.Resource, bool) {
	return r.ensureStylesheet(ctx, absURL, maxImportDepth)
}

func (r *CSSRewriter) ensureStylesheet(ctx context.Context, absURL string, depth int) (*model.Resource, bool) {
	res := r.store.alloc.Allocate(absURL, model.CategoryCSS)
	if res.Status == model.StatusSucceeded {
		return res, true
	}
	if depth <= 0 {
		res.Status = model.StatusFailed
		r.logger.Warn("stylesheet import chain too deep", "url", absURL)
		return res, false
	}

	base, err := url.Parse(absURL)
	if err != nil {
		res.Status = model.StatusFailed
		return res, false
	}

	body, err := r.store.fetcher.Get(ctx, absURL)
	if err != nil {
		res.Status = model.StatusFailed
		r.logger.Warn("stylesheet download failed", "url", absURL, "error", err)
		return res, false
	}

	// Mark before rewriting so a self-import terminates immediately.
	res.Status = model.StatusSucceeded

	localDir := path.Dir(res.LocalPath)
	rewritten := r.rewrite(ctx, string(body), base, localDir, depth)

	dest := filepath.Join(r.store.outputDir, filepath.FromSlash(res.LocalPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		res.Status = model.StatusFailed
		return res, false
	}
	if err := os.WriteFile(dest, []byte(rewritten), 0600); err != nil {
		res.Status = model.StatusFailed
		r.logger.Warn("stylesheet write failed", "path", res.LocalPath, "error", err)
		return res, false
	}

	return res, true
}

// Rewrite localizes url(...) references in a CSS body. base is the URL
// the CSS came from (the page URL for inline styles); localDir is the
// directory, relative to the output root, the CSS will live in.
func (r *CSSRewriter) Rewrite(ctx context.Context, content string, base *url.URL, localDir string) string {
	return r.rewrite(ctx, content, base, localDir, maxImportDepth)
}

func (r *CSSRewriter) rewrite(ctx context.Context, content string, base *url.URL, localDir string, depth int) string {
	return cssURLRef.ReplaceAllStringFunc(content, func(match string) string {
		ref := cssURLRef.FindStringSubmatch(match)[1]

		local, ok := r.rewriteRef(ctx, ref, base, localDir, depth)
		if !ok {
			return match
		}
		// Unquoted on purpose: rewritten paths never need quoting, and
		// quotes would be entity-escaped inside style attributes when
		// the document is re-serialized.
		return "url(" + local + ")"
	})
}

// rewriteRef resolves one url(...) reference. Returns the replacement
// path and false when the reference must be left as-is.
func (r *CSSRewriter) rewriteRef(ctx context.Context, ref string, base *url.URL, localDir string, depth int) (string, bool) {
	// Embedded data and intra-document references are already local.
	if strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "#") {
		return "", false
	}

	// Already-rewritten references point at files that exist relative
	// to the stylesheet; rewriting a second time must be a no-op.
	if !strings.Contains(ref, "://") && !strings.HasPrefix(ref, "//") {
		onDisk := filepath.Join(r.store.outputDir, filepath.FromSlash(localDir), filepath.FromSlash(ref))
		if _, err := os.Stat(onDisk); err == nil {
			return "", false
		}
	}

	abs := crawler.Resolve(base, ref)
	if abs == "" {
		return "", false
	}

	var res *model.Resource
	var ok bool
	if isStylesheetURL(abs) {
		res, ok = r.ensureStylesheet(ctx, abs, depth-1)
	} else {
		res, ok = r.store.ensure(ctx, abs, assets.CategoryAuto)
	}
	if !ok {
		return "", false
	}

	return RelativePath(localDir, res.LocalPath), true
}

// isStylesheetURL reports whether a URL looks like CSS and therefore
// needs its own rewriting pass (an @import target).
func isStylesheetURL(absURL string) bool {
	u, err := url.Parse(absURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".css")
}
