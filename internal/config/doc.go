// Package config provides configuration structures and utilities for the
// mirror tool. It defines the main options for crawling, asset handling,
// link repair, and report generation, plus the optional .webmirror YAML
// file with per-site overrides.
package config
