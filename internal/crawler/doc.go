// Package crawler provides breadth-first crawling of a single website.
//
// # Architecture
//
// The crawler package is designed around the Spider type, which owns the
// crawl frontier: a FIFO queue of normalized URLs, a visited set, and the
// page and depth caps. The Spider does not fetch or store anything itself;
// it hands each URL to a PageHandler and enqueues the same-domain links the
// handler returns. This keeps scheduling policy separate from the mirroring
// work, and makes the crawl order fully deterministic and testable without
// a network.
//
// Design decision: We implement our own crawler rather than using a
// third-party library because:
//  1. Mirroring needs the parsed document after crawling, so fetch and
//     parse belong to the caller, not the scheduler
//  2. We need tight control over request timing and page caps
//  3. The frontier logic is small enough that a dependency buys nothing
//
// # Components
//
//   - Spider: the breadth-first scheduler with visited-set deduplication
//   - Parser: HTML parser that extracts the title and same-domain links
//   - Normalize/Resolve: URL canonicalization shared by every component
//
// # Politeness
//
// The crawl is sequential with a configurable delay between pages, so a
// mirrored site never sees more than one request at a time from the
// scheduler.
//
// # Usage
//
//	spider := crawler.NewSpider(crawler.WithMaxPages(50))
//	visited, err := spider.Crawl(ctx, "https://example.com", handlePage)
package crawler
