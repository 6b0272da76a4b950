// Package server provides the local HTTP plumbing used during interactive sign-in.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [RequestLogger] and [Recoverer] are the middleware installed by the sign-in flow.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback. It validates the state
// parameter, exchanges the code for a token using the request's context, and delivers exactly one
// [OAuthResult] on its result channel. Later callbacks are rejected.
//
// # Callback Server
//
// [CallbackServer] binds a listener, serves a [Router] until the flow finishes and shuts down
// gracefully. Binding to port 0 is supported; [CallbackServer.URL] reports the bound address.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
