package repair

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/webmirror/webmirror/internal/rewrite"
)

// BackupSuffix is appended to a file's name to form its sidecar copy.
const BackupSuffix = ".orig.backup"

// Summary reports what a repair pass did.
type Summary struct {
	// FilesScanned is the number of HTML files examined.
	FilesScanned int

	// FilesModified is the number of files rewritten.
	FilesModified int

	// LinksChecked is the total number of links classified.
	LinksChecked int

	// LinksBroken is the number of links classified as broken.
	LinksBroken int

	// FilesRestored is the number of files restored from sidecars
	// (Restore only).
	FilesRestored int
}

// Fixer scans a mirror directory and rewrites broken links in place.
//
// Design decision: Files are processed concurrently but each file is
// self-contained, so the only shared state is the summary counters.
// Classification against the filesystem is read-only and safe to race.
type Fixer struct {
	// rootDir is the mirror root the scan starts from.
	rootDir string

	// replacementURL, when set, replaces every broken link verbatim.
	replacementURL string

	// fallbackPage is a path relative to rootDir; broken links are
	// rewritten to a relative path to it. replacementURL wins when
	// both are set.
	fallbackPage string

	// backup controls whether a sidecar copy is written before a file
	// is modified.
	backup bool

	// concurrency bounds the parallel file pass.
	concurrency int

	logger *slog.Logger

	mu      sync.Mutex
	summary Summary
}

// FixerOption configures a Fixer.
type FixerOption func(*Fixer)

// WithReplacementURL rewrites every broken link to the given URL.
func WithReplacementURL(u string) FixerOption {
	return func(f *Fixer) {
		f.replacementURL = u
	}
}

// WithFallbackPage rewrites broken links to a relative path to the
// given page (relative to the mirror root, e.g. "index.html").
func WithFallbackPage(p string) FixerOption {
	return func(f *Fixer) {
		f.fallbackPage = strings.TrimPrefix(filepath.ToSlash(p), "/")
	}
}

// WithBackup writes a sidecar copy of each file before modifying it.
func WithBackup(enabled bool) FixerOption {
	return func(f *Fixer) {
		f.backup = enabled
	}
}

// WithConcurrency bounds how many files are processed at once.
func WithConcurrency(n int) FixerOption {
	return func(f *Fixer) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// NewFixer creates a Fixer for the mirror rooted at rootDir.
func NewFixer(rootDir string, logger *slog.Logger, opts ...FixerOption) *Fixer {
	f := &Fixer{
		rootDir:     rootDir,
		concurrency: 4,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run scans every HTML file under the root and rewrites broken links.
// Without a replacement URL or fallback page the pass is a dry run:
// links are classified and counted but nothing is modified.
func (f *Fixer) Run(ctx context.Context) (*Summary, error) {
	files, err := f.htmlFiles()
	if err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for _, file := range files {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := f.fixFile(file); err != nil {
				// A single unreadable file should not sink the pass.
				f.logger.Warn("repair skipped file", "path", file, "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	summary := f.summary
	return &summary, nil
}

// Restore walks the root for sidecar files and puts the originals back.
func (f *Fixer) Restore(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	err := filepath.WalkDir(f.rootDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() || !strings.HasSuffix(p, BackupSuffix) {
			return nil
		}

		original := strings.TrimSuffix(p, BackupSuffix)
		if err := os.Rename(p, original); err != nil {
			return fmt.Errorf("restore %s: %w", original, err)
		}
		summary.FilesRestored++
		f.logger.Info("restored", "path", original)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// htmlFiles lists every .html/.htm file under the root, skipping
// sidecars.
func (f *Fixer) htmlFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(f.rootDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, BackupSuffix) {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".html", ".htm":
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", f.rootDir, err)
	}
	return files, nil
}

// fixFile classifies every link in one file and rewrites the broken
// ones.
func (f *Fixer) fixFile(fsPath string) error {
	raw, err := os.ReadFile(fsPath)
	if err != nil {
		return err
	}

	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(f.rootDir, fsPath)
	if err != nil {
		return err
	}
	fileDir := path.Dir(filepath.ToSlash(rel))
	if fileDir == "." {
		fileDir = ""
	}

	checked, broken := 0, 0
	modified := false

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for i, attr := range n.Attr {
				if !strings.EqualFold(attr.Key, "href") || attr.Val == "" {
					continue
				}
				checked++
				if !f.IsBroken(attr.Val, fileDir) {
					continue
				}
				broken++
				if repl := f.replacement(fileDir); repl != "" {
					n.Attr[i].Val = repl
					modified = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	f.mu.Lock()
	f.summary.FilesScanned++
	f.summary.LinksChecked += checked
	f.summary.LinksBroken += broken
	if modified {
		f.summary.FilesModified++
	}
	f.mu.Unlock()

	if !modified {
		return nil
	}

	if f.backup {
		if err := os.WriteFile(fsPath+BackupSuffix, raw, 0600); err != nil {
			return fmt.Errorf("backup %s: %w", fsPath, err)
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return err
	}
	if err := os.WriteFile(fsPath, buf.Bytes(), 0600); err != nil {
		return err
	}

	f.logger.Info("repaired", "path", fsPath, "broken", broken)
	return nil
}

// IsBroken classifies one link found in a file under fileDir (relative
// to the mirror root).
//
// javascript: links are always broken: they cannot work in a static
// mirror. Fragments, mailto:, tel:, and absolute http(s) URLs are
// always functional. Everything else is a local path, broken only when
// none of its plausible on-disk resolutions exists.
func (f *Fixer) IsBroken(href, fileDir string) bool {
	href = strings.TrimSpace(href)

	lower := strings.ToLower(href)
	switch {
	case href == "":
		return false
	case strings.HasPrefix(lower, "javascript:"):
		return true
	case strings.HasPrefix(href, "#"),
		strings.HasPrefix(lower, "mailto:"),
		strings.HasPrefix(lower, "tel:"),
		strings.HasPrefix(lower, "http://"),
		strings.HasPrefix(lower, "https://"),
		strings.HasPrefix(href, "//"):
		return false
	}

	// Local path: drop query and fragment before resolving.
	target := href
	if u, err := url.Parse(href); err == nil {
		target = u.Path
	}
	if target == "" {
		return false
	}

	var local string
	if strings.HasPrefix(target, "/") {
		local = filepath.Join(f.rootDir, filepath.FromSlash(target))
	} else {
		local = filepath.Join(f.rootDir, filepath.FromSlash(fileDir), filepath.FromSlash(target))
	}

	for _, candidate := range []string{
		local,
		local + ".html",
		filepath.Join(local, "index.html"),
	} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return false
		}
	}
	return true
}

// replacement returns what a broken link in fileDir becomes, or ""
// when the fixer has nothing to rewrite with.
func (f *Fixer) replacement(fileDir string) string {
	if f.replacementURL != "" {
		return f.replacementURL
	}
	if f.fallbackPage != "" {
		return rewrite.RelativePath(fileDir, f.fallbackPage)
	}
	return ""
}
