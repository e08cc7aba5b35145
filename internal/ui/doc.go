// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI is a set of views over one [Model]:
//  1. [ListView] : Browse the tracked list, filtered by status with f
//  2. [SearchView] : Type a query; results arrive from the debounced searcher
//  3. [DetailsView] : Synopsis, season, studios and characters of one title
//  4. [StatusView] : Pick a new watch status for the selected entry
//  5. [ConfirmDeleteView] : Confirm removing an entry
//  6. [ErrorView] : The list failed to load; r retries
//  7. [ExpiredView] : The session expired; any key exits
//
// List changes reach the model through a [tracker.Controller] subscription, notices through the
// [tracker.Notifier] event channel, and search results through [search.Searcher.Results]. Each
// source is drained by a command that waits on its channel and re-arms itself after every message.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
