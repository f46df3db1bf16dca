// Package mirror orchestrates the mirroring of websites into offline
// directory trees.
//
// The Engine ties the other components together: the crawler schedules
// pages, the fetcher downloads them, the rewriter localizes asset and
// navigation references, and the report package emits the sitemap. One
// Engine mirrors one site; the BatchProcessor runs several engines
// concurrently for target lists.
//
// Three entry points cover the supported modes:
//   - Engine.Mirror crawls a site recursively from its start URL
//   - Engine.MirrorPages downloads an explicit page list without recursion
//   - MirrorLocal processes an already-downloaded HTML file offline
package mirror
