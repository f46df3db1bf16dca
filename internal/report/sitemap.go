package report

import (
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/webmirror/webmirror/internal/model"
)

// SitemapFilename is where the sitemap lands inside the mirror.
const SitemapFilename = "sitemap.html"

// sitemapTemplate renders the overview page. It is part of the mirror
// itself, so it must work offline with no external assets.
const sitemapTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Site Map - {{.BaseURL}}</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; color: #222; }
h1 { border-bottom: 2px solid #ddd; padding-bottom: .5rem; }
.stats { color: #666; font-size: .9rem; }
ul { line-height: 1.8; }
</style>
</head>
<body>
<h1>Site Map</h1>
<p class="stats">Mirror of {{.BaseURL}} &mdash; {{.PageCount}} pages, {{.ResourceCount}} resources ({{.CSSCount}} stylesheets, {{.JSCount}} scripts)</p>
<ul>
{{- range .Pages}}
<li><a href="{{.Href}}">{{.Name}}</a></li>
{{- end}}
</ul>
</body>
</html>
`

// sitemapData is the template payload.
type sitemapData struct {
	BaseURL       string
	PageCount     int
	ResourceCount int
	CSSCount      int
	JSCount       int
	Pages         []sitemapEntry
}

// sitemapEntry is one row of the page list.
type sitemapEntry struct {
	Name string
	Href string
}

// WriteSitemap renders sitemap.html into the mirror's output directory
// from the run's statistics.
func WriteSitemap(stats *model.MirrorStats) error {
	data := sitemapData{
		BaseURL:       stats.BaseURL,
		PageCount:     stats.PagesVisited,
		ResourceCount: stats.ResourcesTotal,
		CSSCount:      stats.CSSFiles,
		JSCount:       stats.JSFiles,
		Pages:         make([]sitemapEntry, 0, len(stats.Pages)),
	}

	for _, page := range stats.Pages {
		data.Pages = append(data.Pages, sitemapEntry{
			Name: PageName(page.URL),
			Href: page.LocalPath,
		})
	}
	sort.Slice(data.Pages, func(i, j int) bool {
		return data.Pages[i].Href < data.Pages[j].Href
	})

	tmpl, err := template.New("sitemap").Parse(sitemapTemplate)
	if err != nil {
		return fmt.Errorf("sitemap template: %w", err)
	}

	out, err := os.Create(filepath.Join(stats.OutputDir, SitemapFilename))
	if err != nil {
		return fmt.Errorf("sitemap: %w", err)
	}
	defer out.Close()

	if err := tmpl.Execute(out, data); err != nil {
		return fmt.Errorf("sitemap render: %w", err)
	}
	return nil
}

// titleCaser converts URL slugs into readable names. Shared; cases.Caser
// is not safe for concurrent use, so each call takes a fresh one.
func titleCaser() cases.Caser {
	return cases.Title(language.English)
}

// PageName derives a human-readable name from a page URL: the last path
// segment with separators spaced out and title-cased. The root becomes
// "Home".
func PageName(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	p := strings.Trim(u.Path, "/")
	if p == "" {
		return "Home"
	}

	name := p[strings.LastIndex(p, "/")+1:]
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return titleCaser().String(name)
}
