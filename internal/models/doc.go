// Package models defines the domain entities shared by the remote clients, the session store and the UI.
//
// The package contains three groups of types:
//
// 1. Identity and session state
//   - [Identity] : the signed-in principal as reported by the identity provider
//   - [State] : an immutable snapshot of {identity, profile, loading}
//
// 2. Backend records
//   - [Profile] : the backend-owned user record keyed by the identity subject id
//   - [Playlist] : a named, ordered set of [MovieRef] owned by a profile
//   - [Cooldown] : the wait remaining before a username can change again
//
// 3. Catalog projections
//   - [Movie] and [Genre] : read-only catalog data, never persisted
//
// Backend timestamps arrive in several layouts, so record fields use [Timestamp].
package models
