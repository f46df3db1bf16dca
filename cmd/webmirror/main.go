// Package main provides the entry point for the webmirror CLI.
//
// webmirror downloads complete websites into self-contained offline
// directory trees: pages keep their URL structure, assets are
// deduplicated under assets/, and every reference is rewritten to a
// relative local path.
//
// Usage:
//
//	webmirror mirror <url>
//	webmirror pages <url> [<url>...]
//	webmirror local <file.html>
//	webmirror repair <dir>
//
// See --help for all available options.
package main

// main is the entry point for webmirror.
func main() {
	Execute()
}
