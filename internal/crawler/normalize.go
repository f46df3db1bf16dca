package crawler

import (
	"net/url"
	"strings"
)

// Normalize canonicalizes a URL for deduplication.
//
// Design decision: We normalize URLs because:
//  1. Same page can have different URL representations
//  2. Fragment (#anchor) doesn't change content
//  3. /about and /about/ are the same page on virtually every site
//
// Rules: drop the fragment, lowercase scheme and host, treat an empty
// path as "/", and strip the trailing slash everywhere except the root.
// Query strings are preserved; ?id=1 and ?id=2 are different pages.
func Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	switch {
	case u.Path == "":
		u.Path = "/"
	case u.Path != "/":
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}

// Resolve resolves href against base and returns an absolute URL.
// Protocol-relative references (//cdn.example.com/x.js) inherit the
// base scheme. Non-navigational schemes (javascript:, mailto:, tel:,
// data:) and bare fragments resolve to "".
func Resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "data:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return base.ResolveReference(u).String()
}

// IsSameDomain reports whether rawURL belongs to baseHost. A URL with
// an empty host (relative before resolution) counts as same-domain.
func IsSameDomain(baseHost, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Host == "" || strings.EqualFold(u.Host, baseHost)
}
