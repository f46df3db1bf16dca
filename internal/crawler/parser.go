package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Parser extracts navigation information from HTML content.
//
// Design decision: We use golang.org/x/net/html for parsing rather than
// regex because:
//  1. It correctly handles malformed HTML common on the web
//  2. Provides a proper DOM-like structure the rewriter can also walk
//  3. More maintainable than complex regex patterns
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving
	// relative links.
	baseURL *url.URL
}

// ParseResult contains the navigation data extracted from a page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// InternalLinks are normalized same-domain links in document order,
	// deduplicated.
	InternalLinks []string

	// ExternalLinks are links to other hosts, deduplicated.
	ExternalLinks []string
}

// NewParser creates an HTML parser with the given base URL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse reads and parses HTML content.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}
	return p.ParseNode(doc), nil
}

// ParseNode extracts navigation data from an already-parsed document.
// Callers that need the tree for rewriting parse once and share it.
func (p *Parser) ParseNode(doc *html.Node) *ParseResult {
	result := &ParseResult{
		InternalLinks: make([]string, 0),
		ExternalLinks: make([]string, 0),
	}

	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "a":
				if href := getAttr(n, "href"); href != "" {
					p.collectLink(href, seen, result)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result
}

// collectLink resolves, normalizes, classifies, and deduplicates one href.
func (p *Parser) collectLink(href string, seen map[string]bool, result *ParseResult) {
	resolved := Resolve(p.baseURL, href)
	if resolved == "" {
		return
	}

	normalized := Normalize(resolved)
	if seen[normalized] {
		return
	}
	seen[normalized] = true

	if IsSameDomain(p.baseURL.Host, normalized) {
		result.InternalLinks = append(result.InternalLinks, normalized)
	} else {
		result.ExternalLinks = append(result.ExternalLinks, normalized)
	}
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val
		}
	}
	return ""
}
