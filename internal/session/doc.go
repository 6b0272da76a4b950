// Package session owns the process-wide session state and the flows that change it.
//
// # Store
//
// [Store] holds the current identity, profile and loading flag as an immutable
// [models.State] snapshot. SetIdentity, SetProfile (and its guarded form SetProfileFor) and
// SetLoading are the only writers; each publishes a new snapshot to every subscriber.
//
// # Reconciler
//
// [Reconciler] subscribes to the identity provider and, on each session change, checks the
// backend for the principal's profile:
//
//   - no session: the profile is cleared and loading ends
//   - profile exists: it is fetched and published
//   - profile missing: nothing is created; a provisioning call in flight is joined
//   - check failed: a profile already belonging to the principal is kept
//
// # Provisioning
//
// [Provisioner] creates the profile for a first sign-in with a generated username such as
// "BraveOwl-512", checking availability first and retrying with a new candidate a bounded
// number of times. Calls for one uid share a single in-flight request.
//
// # Account
//
// [Account] implements sign-in, sign-up, sign-out, password reset and the username and
// avatar changes that write the updated profile back to the store.
package session
