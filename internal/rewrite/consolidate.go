package rewrite

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/webmirror/webmirror/internal/assets"
	"github.com/webmirror/webmirror/internal/model"
)

// Consolidated file locations, relative to the output root. They live
// beside the individually rewritten files so the relative url(...)
// references inside the CSS stay valid after concatenation.
const (
	ConsolidatedCSSPath = "assets/css/all-styles.css"
	ConsolidatedJSPath  = "assets/js/all-scripts.js"
)

// Consolidator merges every downloaded stylesheet into one file and
// every script into another, then rewrites the mirrored pages to
// reference only the two merged files.
type Consolidator struct {
	alloc     *assets.Allocator
	outputDir string
	logger    *slog.Logger
}

// NewConsolidator creates a Consolidator over a finished mirror run.
func NewConsolidator(alloc *assets.Allocator, outputDir string, logger *slog.Logger) *Consolidator {
	return &Consolidator{alloc: alloc, outputDir: outputDir, logger: logger}
}

// Consolidate builds the merged asset files and collapses the
// stylesheet and script references on every given page.
func (c *Consolidator) Consolidate(pages []model.PageResult) error {
	if err := c.mergeCategory(model.CategoryCSS, ConsolidatedCSSPath); err != nil {
		return err
	}
	if err := c.mergeCategory(model.CategoryJS, ConsolidatedJSPath); err != nil {
		return err
	}

	for _, page := range pages {
		if err := c.collapsePage(page.LocalPath); err != nil {
			c.logger.Warn("consolidation skipped page", "path", page.LocalPath, "error", err)
		}
	}
	return nil
}

// mergeCategory concatenates every successfully downloaded resource of
// one category into dest, each chunk prefixed with its source URL.
func (c *Consolidator) mergeCategory(category model.Category, dest string) error {
	var buf bytes.Buffer
	for _, res := range c.alloc.Resources() {
		if res.Category != category || res.Status != model.StatusSucceeded {
			continue
		}
		body, err := os.ReadFile(filepath.Join(c.outputDir, filepath.FromSlash(res.LocalPath)))
		if err != nil {
			c.logger.Warn("consolidation skipped resource", "path", res.LocalPath, "error", err)
			continue
		}
		fmt.Fprintf(&buf, "/* Source: %s */\n", res.URL)
		buf.Write(body)
		buf.WriteString("\n\n")
	}

	out := filepath.Join(c.outputDir, filepath.FromSlash(dest))
	if err := os.MkdirAll(filepath.Dir(out), 0750); err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}
	if err := os.WriteFile(out, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("consolidate: write %s: %w", dest, err)
	}
	return nil
}

// collapsePage removes every stylesheet link and external script from
// a saved page and inserts single references to the merged files.
func (c *Consolidator) collapsePage(localPath string) error {
	fsPath := filepath.Join(c.outputDir, filepath.FromSlash(localPath))
	raw, err := os.ReadFile(fsPath)
	if err != nil {
		return err
	}

	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return err
	}

	pageDir := path.Dir(localPath)
	if pageDir == "." {
		pageDir = ""
	}

	var head, body *html.Node
	var remove []*html.Node

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "head":
				head = n
			case "body":
				body = n
			case "link":
				if strings.Contains(strings.ToLower(getAttr(n, "rel")), "stylesheet") {
					remove = append(remove, n)
				}
			case "script":
				if getAttr(n, "src") != "" {
					remove = append(remove, n)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	for _, n := range remove {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}

	if head != nil {
		head.AppendChild(&html.Node{
			Type: html.ElementNode,
			Data: "link",
			Attr: []html.Attribute{
				{Key: "rel", Val: "stylesheet"},
				{Key: "href", Val: RelativePath(pageDir, ConsolidatedCSSPath)},
			},
		})
	}
	if body != nil {
		body.AppendChild(&html.Node{
			Type: html.ElementNode,
			Data: "script",
			Attr: []html.Attribute{
				{Key: "src", Val: RelativePath(pageDir, ConsolidatedJSPath)},
			},
		})
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return err
	}
	return os.WriteFile(fsPath, buf.Bytes(), 0600)
}
