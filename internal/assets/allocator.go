// Package assets maps resource URLs to unique local file paths.
//
// The Allocator is the single source of truth for where a URL lives on
// disk. Every component that touches a resource (page transformer, CSS
// rewriter, fetcher callers, reports, database) goes through the same
// Allocator instance, which is what guarantees that a resource
// referenced from ten pages is downloaded once and every page links to
// the same file.
package assets

import (
	"encoding/hex"
	"net/url"
	"path"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/webmirror/webmirror/internal/model"
)

// CategoryAuto asks the Allocator to infer the category from the URL's
// file extension.
const CategoryAuto = model.Category("")

// extension tables for category inference.
var (
	imageExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".svg": true, ".webp": true, ".ico": true,
	}
	fontExtensions = map[string]bool{
		".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	}
)

// Allocator computes and memoizes local file paths for resource URLs.
//
// Design decision: Allocation is pure memoization keyed by URL, never
// by path, because:
//  1. Two different URLs sharing a basename must not collide
//  2. Re-requesting a URL must return the already-allocated path
//  3. The path for a page is deterministic from its URL alone, which
//     lets navigation links point at pages that have not been fetched yet
//
// The Allocator is not safe for concurrent use; the crawl is sequential
// by design (one site, one goroutine). Batch mirroring gives each site
// its own Allocator.
type Allocator struct {
	// table maps a source URL to its allocated resource record.
	table map[string]*model.Resource

	// order remembers allocation order for deterministic listings.
	order []string
}

// NewAllocator creates an empty Allocator.
func NewAllocator() *Allocator {
	return &Allocator{
		table: make(map[string]*model.Resource),
	}
}

// Allocate returns the resource record for rawURL, computing and
// storing a local path on first call. The category parameter wins over
// extension-based inference; pass CategoryAuto to infer.
//
// The returned pointer is shared: callers update Status through it and
// every other holder observes the change.
func (a *Allocator) Allocate(rawURL string, category model.Category) *model.Resource {
	if res, ok := a.table[rawURL]; ok {
		return res
	}

	category = inferCategory(rawURL, category)

	res := &model.Resource{
		URL:       rawURL,
		LocalPath: a.computePath(rawURL, category),
		Category:  category,
		Status:    model.StatusPending,
	}
	a.table[rawURL] = res
	a.order = append(a.order, rawURL)
	return res
}

// Lookup returns the resource record for rawURL without allocating.
func (a *Allocator) Lookup(rawURL string) (*model.Resource, bool) {
	res, ok := a.table[rawURL]
	return res, ok
}

// Resources returns all allocated records in allocation order.
func (a *Allocator) Resources() []*model.Resource {
	out := make([]*model.Resource, 0, len(a.order))
	for _, u := range a.order {
		out = append(out, a.table[u])
	}
	return out
}

// Len returns the number of distinct URLs allocated.
func (a *Allocator) Len() int {
	return len(a.table)
}

// computePath decides the local path (relative to the output root,
// forward slashes) for a URL of the given category.
func (a *Allocator) computePath(rawURL string, category model.Category) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		// Unparseable URLs still get a stable slot keyed by the raw string.
		return path.Join(model.CategoryOther.Subdir(), "resource_"+urlHash(rawURL))
	}

	if category == model.CategoryHTML {
		return htmlPath(u, rawURL)
	}
	return assetPath(u, rawURL, category)
}

// htmlPath preserves the URL path structure for pages so that the
// mirrored tree is browsable the way the site was laid out.
//
// Rules:
//   - empty path or trailing slash: <path>/index.html
//   - no file extension: treat as a directory, <path>/index.html
//   - extension other than .html/.htm: append .html
//   - query string present: append a hash of the full URL to the stem
//     so ?id=1 and ?id=2 variants of the same path do not collide
func htmlPath(u *url.URL, rawURL string) string {
	p := strings.Trim(u.Path, "/")

	var local string
	switch {
	case p == "":
		local = "index.html"
	case strings.HasSuffix(u.Path, "/"):
		local = path.Join(p, "index.html")
	case path.Ext(p) == "":
		local = path.Join(p, "index.html")
	case !strings.HasSuffix(p, ".html") && !strings.HasSuffix(p, ".htm"):
		local = p + ".html"
	default:
		local = p
	}

	if u.RawQuery != "" {
		dir := path.Dir(local)
		stem := strings.TrimSuffix(path.Base(local), path.Ext(local))
		local = path.Join(dir, stem+"_"+urlHash(rawURL)+".html")
	}

	return sanitizePath(local)
}

// assetPath routes non-HTML resources into a category subdirectory and
// always appends the URL hash to the stem. The hash is what makes the
// Allocator safe under arbitrary URL shapes: query strings, repeated
// basenames, and CDN cache-busting segments all map to distinct files.
func assetPath(u *url.URL, rawURL string, category model.Category) string {
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		base = "resource"
	}
	base = sanitizeName(base)

	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		switch category {
		case model.CategoryCSS:
			ext = ".css"
		case model.CategoryJS:
			ext = ".js"
		}
	}

	return path.Join(category.Subdir(), stem+"_"+urlHash(rawURL)+ext)
}

// inferCategory applies the precedence rule: explicit category wins,
// then filename extension, then other.
func inferCategory(rawURL string, category model.Category) model.Category {
	if category != CategoryAuto {
		return category
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return model.CategoryOther
	}

	switch ext := strings.ToLower(path.Ext(u.Path)); {
	case ext == ".css":
		return model.CategoryCSS
	case ext == ".js" || ext == ".mjs":
		return model.CategoryJS
	case imageExtensions[ext]:
		return model.CategoryImage
	case fontExtensions[ext]:
		return model.CategoryFont
	default:
		return model.CategoryOther
	}
}

// urlHash returns a short deterministic hash of the full URL
// (scheme+host+path+query). Eight hex characters keeps filenames
// readable while making collisions between real-world URLs negligible.
func urlHash(rawURL string) string {
	sum := sha3.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:8]
}

// sanitizeName strips characters that are not portable in filenames.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '|', '?', '*', '\\':
			return '_'
		}
		return r
	}, name)
}

// sanitizePath applies sanitizeName to every path segment.
func sanitizePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = sanitizeName(s)
	}
	return strings.Join(segs, "/")
}
