// Package services implements clients for the two remote collaborators of anitrack.
//
// # Backend
//
// [Client] is the authenticated request client. It attaches the bearer token held by
// session.Store to every request. When the backend answers 401 the client refreshes the
// token once via POST /auth/refresh and re-sends the identical request:
//
//	sent ──401──▶ refresh ──ok──▶ retried ──any──▶ caller
//	                 └─fail──▶ original 401 to caller
//
// If another request refreshed the token while this one was in flight, the retry reuses
// that token instead of refreshing again. Network failures are never retried.
//
// [BackendService] layers typed list operations on the client and implements [ListService].
//
// # Catalog
//
// [CatalogService] talks to the public Jikan v4 API and implements [AnimeCatalog]. All calls
// share one [rate.Limiter]. HTTP 429 maps to [shared.ErrRateLimited].
//
// # Error Handling
//
//   - [shared.ErrNotAuthenticated] : no active session
//   - [shared.ErrSessionExpired] : 401 after the refresh-and-retry protocol
//   - [shared.APIError] : other non-2xx with the server's message, matches [shared.ErrRequestRejected]
//   - [shared.ErrAPIRequest] : transport failure
//   - [shared.ErrRateLimited] : catalog 429
//   - [shared.ErrAnimeNotFound] : catalog 404
package services
