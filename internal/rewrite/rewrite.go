package rewrite

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/webmirror/webmirror/internal/assets"
	"github.com/webmirror/webmirror/internal/model"
)

// Downloader retrieves URLs. Satisfied by fetch.Fetcher; tests provide
// in-memory implementations.
type Downloader interface {
	// Get returns the body of rawURL.
	Get(ctx context.Context, rawURL string) ([]byte, error)

	// Fetch downloads rawURL into the file at dest.
	Fetch(ctx context.Context, rawURL, dest string) error
}

// RelativePath computes the relative path from a directory to a target
// file. Both arguments are forward-slash paths relative to the output
// root; fromDir may be empty or "." for the root itself.
//
// RelativePath("blog", "assets/css/main.css") = "../assets/css/main.css"
// RelativePath("", "about/index.html") = "about/index.html"
func RelativePath(fromDir, target string) string {
	var fromSegs []string
	if fromDir != "" && fromDir != "." {
		fromSegs = strings.Split(path.Clean(fromDir), "/")
	}
	targetSegs := strings.Split(path.Clean(target), "/")

	// Common directory prefix; the target's final segment is the
	// filename and never part of it.
	i := 0
	for i < len(fromSegs) && i < len(targetSegs)-1 && fromSegs[i] == targetSegs[i] {
		i++
	}

	segs := make([]string, 0, len(fromSegs)-i+len(targetSegs)-i)
	for j := i; j < len(fromSegs); j++ {
		segs = append(segs, "..")
	}
	segs = append(segs, targetSegs[i:]...)
	return strings.Join(segs, "/")
}

// store downloads allocated resources into the output tree and tracks
// their status. CSS goes through CSSRewriter instead, which rewrites
// the body before it hits disk.
type store struct {
	alloc     *assets.Allocator
	fetcher   Downloader
	outputDir string
	logger    *slog.Logger
}

// ensure makes sure the resource for absURL exists on disk, downloading
// it on first reference. Returns the record and whether the file is
// usable. A previously failed resource is retried.
func (s *store) ensure(ctx context.Context, absURL string, category model.Category) (*model.Resource, bool) {
	res := s.alloc.Allocate(absURL, category)
	if res.Status == model.StatusSucceeded {
		return res, true
	}

	dest := filepath.Join(s.outputDir, filepath.FromSlash(res.LocalPath))
	if err := s.fetcher.Fetch(ctx, absURL, dest); err != nil {
		res.Status = model.StatusFailed
		s.logger.Warn("resource download failed", "url", absURL, "error", err)
		return res, false
	}

	res.Status = model.StatusSucceeded
	s.logger.Debug("resource saved", "url", absURL, "path", res.LocalPath)
	return res, true
}
