// Package repositories implements SQLite persistence for local application state.
//
// The backend owns profiles and playlists, so the only record kept locally is the identity
// session: [SessionRepository] stores the credentials issued by the identity provider so a
// restart resumes the previous sign-in. It implements [identity.Persistence].
//
// The schema is created by the embedded migrations in the shared package.
package repositories
