// Package cli implements the bulkstat command-line interface.
//
// The commands locate and download files of the Eurostat bulk download
// service, list its datasets and dimensions, and query the metabase. The CLI
// is built using cobra and logs through charmbracelet/log.
//
// # Commands
//
//   - url, status, get: build, probe and download file URLs
//   - dims, datasets, updated, dict: directory listings and dictionaries
//   - toc: titles and coverage periods from the table of contents
//   - metabase: dataset/dimension/label queries and structure graphs
//   - browse: interactive dataset picker
//   - serve: HTTP query API over the metabase
//   - cache: manage the response cache
//
// # Configuration
//
// Settings come from the config file, BULKSTAT_* environment variables and
// global flags, in increasing precedence. See the config package.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which shows
// cache hits and misses.
package cli
