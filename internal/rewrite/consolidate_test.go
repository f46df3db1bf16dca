package rewrite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/webmirror/webmirror/internal/assets"
	"github.com/webmirror/webmirror/internal/model"
)

// TestConsolidate verifies stylesheet and script bodies are merged with
// source comments and page references collapse to the two merged files.
func TestConsolidate(t *testing.T) {
	t.Parallel()

	outputDir := t.TempDir()
	fetcher := &fakeFetcher{responses: map[string]string{
		"https://example.com/css/a.css":  "a {}",
		"https://example.com/css/b.css":  "b {}",
		"https://example.com/js/one.js":  "var one;",
		"https://example.com/js/two.js":  "var two;",
		"https://example.com/":           "",
	}}

	alloc := assets.NewAllocator()
	tr := NewTransformer(alloc, fetcher, outputDir, "example.com", discardLogger())

	const page = `<html><head>
		<link rel="stylesheet" href="/css/a.css">
		<link rel="stylesheet" href="/css/b.css">
		<link rel="stylesheet" href="/css/a.css">
	</head><body>
		<script src="/js/one.js"></script>
		<script src="/js/two.js"></script>
	</body></html>`

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}
	res, err := tr.Transform(context.Background(), doc, "https://example.com/")
	if err != nil {
		t.Fatal(err)
	}

	// Write the transformed page the way the mirror engine does.
	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		t.Fatal(err)
	}
	pagePath := filepath.Join(outputDir, filepath.FromSlash(res.LocalPath))
	if err := os.WriteFile(pagePath, []byte(sb.String()), 0600); err != nil {
		t.Fatal(err)
	}

	c := NewConsolidator(alloc, outputDir, discardLogger())
	pages := []model.PageResult{{URL: "https://example.com/", LocalPath: res.LocalPath}}
	if err := c.Consolidate(pages); err != nil {
		t.Fatalf("Consolidate() error = %v", err)
	}

	merged, err := os.ReadFile(filepath.Join(outputDir, filepath.FromSlash(ConsolidatedCSSPath)))
	if err != nil {
		t.Fatalf("read merged css: %v", err)
	}
	for _, want := range []string{
		"/* Source: https://example.com/css/a.css */",
		"/* Source: https://example.com/css/b.css */",
		"a {}",
		"b {}",
	} {
		if !strings.Contains(string(merged), want) {
			t.Errorf("merged css missing %q:\n%s", want, merged)
		}
	}

	scripts, err := os.ReadFile(filepath.Join(outputDir, filepath.FromSlash(ConsolidatedJSPath)))
	if err != nil {
		t.Fatalf("read merged js: %v", err)
	}
	if !strings.Contains(string(scripts), "var one;") || !strings.Contains(string(scripts), "var two;") {
		t.Errorf("merged js incomplete:\n%s", scripts)
	}

	rewritten, err := os.ReadFile(pagePath)
	if err != nil {
		t.Fatal(err)
	}
	out := string(rewritten)

	if got := strings.Count(out, "<link"); got != 1 {
		t.Errorf("page has %d link tags, want 1:\n%s", got, out)
	}
	if got := strings.Count(out, "<script"); got != 1 {
		t.Errorf("page has %d script tags, want 1:\n%s", got, out)
	}
	if !strings.Contains(out, `href="assets/css/all-styles.css"`) {
		t.Errorf("page does not reference merged css:\n%s", out)
	}
	if !strings.Contains(out, `src="assets/js/all-scripts.js"`) {
		t.Errorf("page does not reference merged js:\n%s", out)
	}
}

// TestConsolidateRelativeFromNestedPage verifies merged-file references
// from a nested page climb back to the output root.
func TestConsolidateRelativeFromNestedPage(t *testing.T) {
	t.Parallel()

	outputDir := t.TempDir()
	alloc := assets.NewAllocator()

	nested := filepath.Join(outputDir, "blog", "post")
	if err := os.MkdirAll(nested, 0750); err != nil {
		t.Fatal(err)
	}
	pagePath := filepath.Join(nested, "index.html")
	if err := os.WriteFile(pagePath, []byte(`<html><head></head><body></body></html>`), 0600); err != nil {
		t.Fatal(err)
	}

	c := NewConsolidator(alloc, outputDir, discardLogger())
	pages := []model.PageResult{{LocalPath: "blog/post/index.html"}}
	if err := c.Consolidate(pages); err != nil {
		t.Fatalf("Consolidate() error = %v", err)
	}

	out, err := os.ReadFile(pagePath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `href="../../assets/css/all-styles.css"`) {
		t.Errorf("nested page reference wrong:\n%s", out)
	}
}
