package rewrite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// fakeFetcher serves canned bodies keyed by URL and records what was
// requested. URLs without an entry fail, simulating a dead resource.
type fakeFetcher struct {
	responses map[string]string
	requested []string
}

func (f *fakeFetcher) Get(_ context.Context, rawURL string) ([]byte, error) {
	f.requested = append(f.requested, rawURL)
	body, ok := f.responses[rawURL]
	if !ok {
		return nil, fmt.Errorf("no response for %s", rawURL)
	}
	return []byte(body), nil
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL, dest string) error {
	body, err := f.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return err
	}
	return os.WriteFile(dest, body, 0600)
}

// requestCount returns how many times rawURL was requested.
func (f *fakeFetcher) requestCount(rawURL string) int {
	n := 0
	for _, u := range f.requested {
		if u == rawURL {
			n++
		}
	}
	return n
}

// discardLogger returns a logger for components under test.
func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// TestRelativePath covers path computation from nested pages to assets
// and between pages.
func TestRelativePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fromDir string
		target  string
		want    string
	}{
		{"root to asset", "", "assets/css/main.css", "assets/css/main.css"},
		{"root dot to asset", ".", "assets/css/main.css", "assets/css/main.css"},
		{"nested page to asset", "blog/post", "assets/images/a.png", "../../assets/images/a.png"},
		{"page to sibling page", "blog", "blog/index.html", "index.html"},
		{"page to cousin page", "blog/post", "about/index.html", "../../about/index.html"},
		{"asset dir to sibling asset", "assets/css", "assets/images/bg.png", "../images/bg.png"},
		{"same dir", "assets/css", "assets/css/other.css", "other.css"},
		{"deep to root file", "a/b/c", "index.html", "../../../index.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := RelativePath(tt.fromDir, tt.target); got != tt.want {
				t.Errorf("RelativePath(%q, %q) = %q, want %q", tt.fromDir, tt.target, got, tt.want)
			}
		})
	}
}
