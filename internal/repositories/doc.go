// Package repositories implements SQLite persistence for client-side state.
//
// The database is the terminal analogue of browser local storage: it keeps the login
// session and catalog search results between CLI invocations.
//
// Key Implementations:
//   - [SessionRepository] : the single persisted login credential, satisfies session.Persister
//   - [SearchCacheRepository] : catalog search batches keyed by (session id, query)
//   - [SessionSearchCache] : binds the search cache to the active session for the searcher
//
// Cached search batches belong to one login session and are removed when it ends.
package repositories
