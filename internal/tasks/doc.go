// Package tasks runs list operations that span several requests, with real-time progress reporting.
//
// # Export
//
// [Engine.Export] writes the tracked list to a file:
//
//  1. Fetches the list from the backend ([ListSource])
//  2. Optionally fetches catalog details for each entry ([DetailSource])
//     - A bounded worker pool shares one rate limiter so the catalog is not flooded
//     - Failed fetches are reported and the entry is exported without details
//  3. Renders the export through the formatter package (json, csv, markdown, txt)
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
