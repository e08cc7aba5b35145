// Package models defines the domain types shared by the anitrack client.
//
// The package contains two categories of types:
//
// 1. Tracked list entries owned by the list controller:
//   - [TrackedItem] : one catalog title on the user's list with its watch [Status]
//   - [Profile] : the logged-in user's backend profile
//
// 2. Transient catalog data produced by searches and detail lookups:
//   - [SearchResult] : a single catalog hit, discarded when superseded
//   - [AnimeDetails] : synopsis, studios and [Character] listing for one title
//
// JSON tags follow the backend and Jikan v4 wire formats. Catalog payloads are decoded into
// the unexported jikan* types and flattened here.
package models
