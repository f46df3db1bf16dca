// Package model defines the core data types shared across webmirror:
// resources, resource categories, per-page results, and mirror statistics.
//
// This package has no dependencies on other internal packages so that
// every component (allocator, fetcher, rewriter, reports, database) can
// share the same vocabulary without import cycles.
package model
