// Package repair fixes broken links in an already-mirrored site
// without touching the network.
//
// A link is broken when no plausible local target exists for it: the
// exact path, the path with ".html" appended, and an index.html inside
// the path are all tried before giving up. Broken links are rewritten
// to a fixed replacement URL or to a relative path to a designated
// fallback page. Originals can be preserved as ".orig.backup" sidecar
// files and restored later.
package repair
