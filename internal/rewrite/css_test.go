package rewrite

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/webmirror/webmirror/internal/assets"
	"github.com/webmirror/webmirror/internal/model"
)

// TestCSSRewriteLocalizesReferences verifies quoted and unquoted url()
// forms are resolved, downloaded, and replaced with relative paths,
// while data: URIs pass through untouched.
func TestCSSRewriteLocalizesReferences(t *testing.T) {
	t.Parallel()

	outputDir := t.TempDir()
	fetcher := &fakeFetcher{responses: map[string]string{
		"https://example.com/img/bg.png":   "png-bytes",
		"https://example.com/fonts/r.woff": "font-bytes",
	}}

	alloc := assets.NewAllocator()
	r := NewCSSRewriter(alloc, fetcher, outputDir, discardLogger())

	base, _ := url.Parse("https://example.com/css/site.css")
	input := `body { background: url("/img/bg.png"); }
@font-face { src: url(../fonts/r.woff); }
.inline { background: url(data:image/png;base64,AAAA); }`

	got := r.Rewrite(context.Background(), input, base, "assets/css")

	if strings.Contains(got, "example.com") {
		t.Errorf("absolute URLs remain in output:\n%s", got)
	}
	if !strings.Contains(got, "url(../images/bg_") {
		t.Errorf("background not rewritten relative to assets/css:\n%s", got)
	}
	if !strings.Contains(got, "url(../fonts/r_") {
		t.Errorf("font not rewritten:\n%s", got)
	}
	if !strings.Contains(got, "url(data:image/png;base64,AAAA)") {
		t.Errorf("data URI was modified:\n%s", got)
	}

	// Both referenced assets must exist on disk.
	for _, res := range alloc.Resources() {
		p := filepath.Join(outputDir, filepath.FromSlash(res.LocalPath))
		if _, err := os.Stat(p); err != nil {
			t.Errorf("asset %s not written: %v", res.LocalPath, err)
		}
	}
}

// TestCSSRewriteIdempotent verifies running the rewriter over
// already-rewritten CSS changes nothing: the relative references
// resolve to files that exist, so they are left alone.
func TestCSSRewriteIdempotent(t *testing.T) {
	t.Parallel()

	outputDir := t.TempDir()
	fetcher := &fakeFetcher{responses: map[string]string{
		"https://example.com/img/bg.png": "png-bytes",
	}}

	alloc := assets.NewAllocator()
	r := NewCSSRewriter(alloc, fetcher, outputDir, discardLogger())

	base, _ := url.Parse("https://example.com/css/site.css")
	first := r.Rewrite(context.Background(), `a { background: url(/img/bg.png); }`, base, "assets/css")
	second := r.Rewrite(context.Background(), first, base, "assets/css")

	if first != second {
		t.Errorf("second pass changed output:\nfirst:  %s\nsecond: %s", first, second)
	}
	if got := fetcher.requestCount("https://example.com/img/bg.png"); got != 1 {
		t.Errorf("asset fetched %d times, want 1", got)
	}
}

// TestEnsureStylesheetFollowsImports verifies @import chains are
// downloaded and rewritten recursively through the shared allocator.
func TestEnsureStylesheetFollowsImports(t *testing.T) {
	t.Parallel()

	outputDir := t.TempDir()
	fetcher := &fakeFetcher{responses: map[string]string{
		"https://example.com/css/main.css":  `@import url("base.css"); h1 { background: url(/img/h.png); }`,
		"https://example.com/css/base.css":  `body { background: url(/img/b.png); }`,
		"https://example.com/img/h.png":     "h",
		"https://example.com/img/b.png":     "b",
	}}

	alloc := assets.NewAllocator()
	r := NewCSSRewriter(alloc, fetcher, outputDir, discardLogger())

	res, ok := r.EnsureStylesheet(context.Background(), "https://example.com/css/main.css")
	if !ok {
		t.Fatal("EnsureStylesheet failed")
	}

	main, err := os.ReadFile(filepath.Join(outputDir, filepath.FromSlash(res.LocalPath)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(main), "url(base_") {
		t.Errorf("@import not rewritten to sibling reference:\n%s", main)
	}

	imported, ok := alloc.Lookup("https://example.com/css/base.css")
	if !ok {
		t.Fatal("imported stylesheet not allocated")
	}
	if imported.Status != model.StatusSucceeded {
		t.Errorf("imported stylesheet status = %q", imported.Status)
	}

	body, err := os.ReadFile(filepath.Join(outputDir, filepath.FromSlash(imported.LocalPath)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "url(../images/b_") {
		t.Errorf("imported stylesheet's own references not rewritten:\n%s", body)
	}
}

// TestEnsureStylesheetMemoized verifies a stylesheet referenced twice
// is fetched once.
func TestEnsureStylesheetMemoized(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{responses: map[string]string{
		"https://example.com/a.css": "body {}",
	}}
	r := NewCSSRewriter(assets.NewAllocator(), fetcher, t.TempDir(), discardLogger())

	first, ok1 := r.EnsureStylesheet(context.Background(), "https://example.com/a.css")
	second, ok2 := r.EnsureStylesheet(context.Background(), "https://example.com/a.css")

	if !ok1 || !ok2 {
		t.Fatal("EnsureStylesheet failed")
	}
	if first != second {
		t.Error("expected the same resource record")
	}
	if got := fetcher.requestCount("https://example.com/a.css"); got != 1 {
		t.Errorf("stylesheet fetched %d times, want 1", got)
	}
}

// TestCSSRewriteKeepsFailedReference verifies a dead asset keeps its
// original url() form.
func TestCSSRewriteKeepsFailedReference(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{responses: map[string]string{}}
	r := NewCSSRewriter(assets.NewAllocator(), fetcher, t.TempDir(), discardLogger())

	base, _ := url.Parse("https://example.com/css/site.css")
	input := `a { background: url(/img/gone.png); }`
	if got := r.Rewrite(context.Background(), input, base, "assets/css"); got != input {
		t.Errorf("failed reference was rewritten: %s", got)
	}
}
