// Package rewrite turns fetched pages and stylesheets into a
// self-contained local mirror.
//
// # Architecture
//
// Three components share one assets.Allocator:
//
//   - Transformer: walks a parsed HTML tree, downloads every referenced
//     asset, and rewrites each reference to a path relative to the
//     page's own directory
//   - CSSRewriter: rewrites url(...) references inside stylesheets and
//     inline style attributes, recursing through @import chains
//   - Consolidator: optional post-pass that merges all stylesheets and
//     scripts into one file each and collapses page references to them
//
// The shared Allocator is what makes the output coherent: an image
// referenced from five pages and two stylesheets is downloaded once and
// every reference resolves to the same file.
//
// Failure policy: a resource that cannot be downloaded keeps its
// original absolute URL in the markup. The page is still useful online;
// nothing short of an unparseable page aborts its processing.
package rewrite
