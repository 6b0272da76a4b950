// Package identity adapts the external identity provider to the capability the session layer consumes.
//
// # Provider
//
// [Provider] is the whole surface the application needs: interactive and credential sign-in,
// sign-up, sign-out, verification and password-reset emails, and [Provider.OnSessionChange] to
// observe the session. Subscribing returns an [Unsubscribe] handle that callers release on
// teardown. An error from OnSessionChange means the provider could not be set up and is fatal
// to the subscriber.
//
// Session notifications are delivered in order through a [Notifier]. A new subscriber receives
// the current session (possibly nil) immediately, mirroring how the provider reports its initial
// state.
//
// # Firebase
//
// [FirebaseProvider] talks to the Identity Toolkit REST API (accounts:signUp,
// accounts:signInWithPassword, accounts:signInWithIdp, accounts:lookup, accounts:sendOobCode)
// and to the Secure Token API to refresh ID tokens. Credentials survive restarts through a
// [Persistence]; the first subscription restores them, refreshing the ID token when it has
// expired.
//
// Provider failures are returned as [*Error], whose message is a short human-readable form of
// the provider's error code ("EMAIL_EXISTS" becomes "Email exists").
//
// # Interactive Sign-in
//
// [GoogleFlow] runs the OAuth2 authorization code flow: it serves the callback on a local
// [server.BasicRouter], opens the browser, waits for [server.OAuthHandler] to deliver the token
// and shuts the server down. The Google access token is then exchanged for provider credentials
// with accounts:signInWithIdp.
package identity
