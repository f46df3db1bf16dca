package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/webmirror/webmirror/internal/model"
)

// SimpleWriter outputs human-readable text summaries.
// This format is designed for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// verbose enables the per-page listing in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the per-page listing.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(stats *model.MirrorStats) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         MIRROR SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Site:             %s\n", stats.BaseURL))
	sb.WriteString(fmt.Sprintf("Output:           %s\n", stats.OutputDir))
	sb.WriteString(fmt.Sprintf("Pages:            %d\n", stats.PagesVisited))
	sb.WriteString(fmt.Sprintf("Resources:        %d (%d css, %d js)\n",
		stats.ResourcesTotal, stats.CSSFiles, stats.JSFiles))
	sb.WriteString(fmt.Sprintf("Failed downloads: %d\n", stats.ResourcesFailed))
	sb.WriteString(fmt.Sprintf("Duration:         %s\n", stats.Duration.Round(10*time.Millisecond)))
	sb.WriteString("\n")

	if w.verbose && len(stats.Pages) > 0 {
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n")
		sb.WriteString("PAGES\n")
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n\n")
		for _, page := range stats.Pages {
			sb.WriteString(fmt.Sprintf("  [+] %s -> %s\n", page.URL, page.LocalPath))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}
