package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/webmirror/webmirror/internal/model"
)

// sampleStats returns a populated summary for writer tests.
func sampleStats(t *testing.T) *model.MirrorStats {
	t.Helper()

	return &model.MirrorStats{
		BaseURL:         "https://example.com",
		OutputDir:       t.TempDir(),
		PagesVisited:    2,
		ResourcesTotal:  5,
		ResourcesFailed: 1,
		CSSFiles:        2,
		JSFiles:         1,
		Duration:        3 * time.Second,
		Pages: []model.PageResult{
			{URL: "https://example.com/", LocalPath: "index.html", Title: "Home"},
			{URL: "https://example.com/about-us", LocalPath: "about-us/index.html", Title: "About"},
		},
	}
}

// TestSimpleWriter verifies the text summary contains the run facts.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	stats := sampleStats(t)
	var buf bytes.Buffer

	w := NewSimpleWriter(&buf, WithVerbose(true))
	if _, err := w.Write(stats); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"MIRROR SUMMARY",
		"https://example.com",
		"Pages:            2",
		"Failed downloads: 1",
		"about-us/index.html",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// TestJSONWriter verifies the output round-trips back into the model.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	stats := sampleStats(t)
	var buf bytes.Buffer

	w := NewJSONWriter(&buf)
	if _, err := w.Write(stats); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var decoded model.MirrorStats
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.BaseURL != stats.BaseURL || decoded.PagesVisited != stats.PagesVisited {
		t.Errorf("round trip lost data: %+v", decoded)
	}
}

// TestMarkdownWriter verifies the markdown structure.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	stats := sampleStats(t)
	var buf bytes.Buffer

	w := NewMarkdownWriter(&buf)
	if _, err := w.Write(stats); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"# Mirror Report",
		"## Resources",
		"## Pages",
		"`https://example.com`",
		"`about-us/index.html`",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
}

// TestMultiWriter verifies fan-out to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	stats := sampleStats(t)
	var a, b bytes.Buffer

	mw := NewMultiWriter(NewSimpleWriter(&a), NewJSONWriter(&b))
	if _, err := mw.Write(stats); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if a.Len() == 0 || b.Len() == 0 {
		t.Error("expected output in both writers")
	}
}

// TestWriteSitemap verifies the sitemap lists every page sorted by
// local path with derived names.
func TestWriteSitemap(t *testing.T) {
	t.Parallel()

	stats := sampleStats(t)
	if err := WriteSitemap(stats); err != nil {
		t.Fatalf("WriteSitemap() error = %v", err)
	}

	out, err := os.ReadFile(filepath.Join(stats.OutputDir, SitemapFilename))
	if err != nil {
		t.Fatal(err)
	}
	html := string(out)

	for _, want := range []string{
		`<a href="index.html">Home</a>`,
		`<a href="about-us/index.html">About Us</a>`,
		"2 pages, 5 resources",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("sitemap missing %q:\n%s", want, html)
		}
	}

	// "about-us/index.html" sorts before "index.html".
	if strings.Index(html, `"about-us/index.html"`) > strings.Index(html, `"index.html"`) {
		t.Error("pages not sorted by local path")
	}
}

// TestPageName covers name derivation from URL paths.
func TestPageName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/", "Home"},
		{"https://example.com", "Home"},
		{"https://example.com/about-us", "About Us"},
		{"https://example.com/blog/my_first_post", "My First Post"},
		{"https://example.com/docs/setup.html", "Setup"},
	}

	for _, tt := range tests {
		if got := PageName(tt.url); got != tt.want {
			t.Errorf("PageName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
