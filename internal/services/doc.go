// Package services implements the remote clients: the movie catalog (TMDB), and the profile and
// playlist endpoints of the REST backend.
//
// # Result Envelopes
//
// Every client operation returns a fixed result struct carrying Success, its payload and an
// Error string. Operations never return a Go error and never panic; callers branch on Success.
//
// Read operations treat HTTP 404 as a successful "not found" with a nil (or empty) payload so
// callers can render a not-found state. Mutations treat 404 as a failure. The catalog's movie
// lookup is the exception: a missing movie is reported as a failure carrying the provider's
// status_message.
//
// Failure messages come from the server body when it carries one (message, detail, error,
// status_message, or the first field error of a validation response) and from the transport
// otherwise. Nothing is retried here.
//
// # Backend Transport
//
// [APIService] performs raw requests against the backend and returns an [APIResponse]. It builds
// escaped paths (optionally with the trailing slash the backend routes expect), stamps each
// request with an X-Request-ID and enforces the configured timeout through its [http.Client].
// [ProfileClient] and [PlaylistClient] are typed wrappers over it.
//
// # Catalog
//
// [CatalogClient] authenticates with a static bearer token through [oauth2.Transport], waits on a
// [rate.Limiter] before each request and keeps movie details in an in-memory TTL cache.
//
// # Payload Normalization
//
// Backend responses vary in shape: a profile may arrive bare or wrapped as {"user": ...}, and
// playlist listings may be {"playlists": [...], "count": n}, a bare array, or carry null.
// Clients normalize these at the boundary so no shape variance leaks to callers.
package services
