package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/webmirror/webmirror/internal/model"
)

// MarkdownWriter outputs summaries in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(stats *model.MirrorStats) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, stats)
	w.writeResources(md, stats)
	w.writePages(md, stats)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, stats *model.MirrorStats) {
	md.H1("Mirror Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + stats.BaseURL + "`"},
			{"Output Directory", "`" + stats.OutputDir + "`"},
			{"Pages Mirrored", strconv.Itoa(stats.PagesVisited)},
			{"Duration", stats.Duration.String()},
			{"Status", w.statusText(stats)},
		},
	})
	md.PlainText("")
}

// statusText summarizes the run outcome.
func (w *MarkdownWriter) statusText(stats *model.MirrorStats) string {
	if stats.ResourcesFailed > 0 {
		return "⚠️ Complete with " + strconv.Itoa(stats.ResourcesFailed) + " failed download(s)"
	}
	return "✅ Complete"
}

// writeResources writes the resource breakdown with a distribution chart.
func (w *MarkdownWriter) writeResources(md *markdown.Markdown, stats *model.MirrorStats) {
	md.H2("Resources")
	md.PlainText("")

	other := stats.ResourcesTotal - stats.CSSFiles - stats.JSFiles
	if other < 0 {
		other = 0
	}

	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Count"},
		Rows: [][]string{
			{"Stylesheets", strconv.Itoa(stats.CSSFiles)},
			{"Scripts", strconv.Itoa(stats.JSFiles)},
			{"Other", strconv.Itoa(other)},
			{"**Total**", "**" + strconv.Itoa(stats.ResourcesTotal) + "**"},
			{"Failed", strconv.Itoa(stats.ResourcesFailed)},
		},
	})
	md.PlainText("")

	if stats.ResourcesTotal > 0 {
		w.writePieChart(md, stats, other)
	}

	if stats.ResourcesFailed > 0 {
		md.Warningf(
			"%d resource(s) could not be downloaded and keep their original URLs.",
			stats.ResourcesFailed,
		)
		md.PlainText("")
	}
}

// writePieChart writes a mermaid pie chart of the resource mix.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, stats *model.MirrorStats, other int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Resource Distribution"),
		piechart.WithShowData(true),
	)

	if stats.CSSFiles > 0 {
		chart.LabelAndIntValue("Stylesheets", uint64(stats.CSSFiles))
	}
	if stats.JSFiles > 0 {
		chart.LabelAndIntValue("Scripts", uint64(stats.JSFiles))
	}
	if other > 0 {
		chart.LabelAndIntValue("Other", uint64(other))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writePages writes the mirrored page table.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, stats *model.MirrorStats) {
	md.H2("Pages")
	md.PlainText("")

	if len(stats.Pages) == 0 {
		md.PlainText("No pages mirrored.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(stats.Pages))
	for i, page := range stats.Pages {
		title := page.Title
		if title == "" {
			title = "-"
		}
		rows[i] = []string{
			truncateString(title, 40),
			"`" + truncateString(page.URL, 60) + "`",
			"`" + page.LocalPath + "`",
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Title", "URL", "Local Path"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [webmirror](https://github.com/webmirror/webmirror)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
