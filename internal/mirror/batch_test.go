package mirror

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// hostDir converts a URL host into a directory name.
func hostDir(t *testing.T, target string) string {
	t.Helper()

	u, err := url.Parse(target)
	if err != nil {
		t.Fatal(err)
	}
	return strings.ReplaceAll(u.Host, ":", "_")
}

// TestProcessBatchMirrorsAllSites runs two sites concurrently into
// separate directories.
func TestProcessBatchMirrorsAllSites(t *testing.T) {
	t.Parallel()

	srvA := testSite(t)
	srvB := testSite(t)
	outDir := t.TempDir()

	factory := func(target string) (*Engine, error) {
		return New(target, filepath.Join(outDir, hostDir(t, target)),
			WithLogger(discardLogger()),
			WithSpider(fastSpider()),
		)
	}

	bp := NewBatchProcessor(factory,
		WithBatchLogger(discardLogger()),
		WithConcurrency(2),
	)

	results, err := bp.ProcessBatch(context.Background(), []string{srvA.URL, srvB.URL})
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for i, stats := range results {
		if stats == nil {
			t.Fatalf("results[%d] is nil", i)
		}
		if stats.PagesVisited != 2 {
			t.Errorf("results[%d].PagesVisited = %d, want 2", i, stats.PagesVisited)
		}
	}

	// Results keep target order.
	if results[0].BaseURL != srvA.URL || results[1].BaseURL != srvB.URL {
		t.Errorf("results out of order: %q, %q", results[0].BaseURL, results[1].BaseURL)
	}

	for _, target := range []string{srvA.URL, srvB.URL} {
		home := filepath.Join(outDir, hostDir(t, target), "index.html")
		if _, err := os.Stat(home); err != nil {
			t.Errorf("home page missing for %s: %v", target, err)
		}
	}
}

// TestProcessBatchSkipsBadTarget verifies one bad target does not sink
// the batch.
func TestProcessBatchSkipsBadTarget(t *testing.T) {
	t.Parallel()

	srv := testSite(t)
	outDir := t.TempDir()

	factory := func(target string) (*Engine, error) {
		return New(target, filepath.Join(outDir, hostDir(t, target)),
			WithLogger(discardLogger()),
			WithSpider(fastSpider()),
		)
	}

	bp := NewBatchProcessor(factory, WithBatchLogger(discardLogger()))

	results, err := bp.ProcessBatch(context.Background(), []string{"ftp://bad.example.com", srv.URL})
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}

	if results[0] != nil {
		t.Errorf("expected nil result for bad target, got %+v", results[0])
	}
	if results[1] == nil || results[1].PagesVisited != 2 {
		t.Errorf("good target should still be mirrored: %+v", results[1])
	}
}

// TestProcessBatchCancelled verifies cancellation propagates.
func TestProcessBatchCancelled(t *testing.T) {
	t.Parallel()

	srv := testSite(t)

	factory := func(target string) (*Engine, error) {
		return New(target, t.TempDir(), WithLogger(discardLogger()), WithSpider(fastSpider()))
	}

	bp := NewBatchProcessor(factory, WithBatchLogger(discardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := bp.ProcessBatch(ctx, []string{srv.URL}); err == nil {
		t.Error("expected error from cancelled context")
	}
}
