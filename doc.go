// Package accounts provides a self-hosted account lifecycle core for small
// web applications: email/password registration with mandatory email
// verification, guarded authentication, token driven password reset, and a
// two tier role model (user/admin).
//
// Account lifecycle:
//   - Accounts are created inactive together with their Profile in a single
//     transaction. The Lifecycle state machine owns the legal transitions
//     (pending verification -> active) and the independent password reset
//     sub-state, including hooks, clock injection, and activity events.
//
// Timed signed tokens:
//   - TokenGenerator mints single-use, time-limited tokens bound to an
//     account and a purpose. The signature covers a mutable account field
//     (email for verification, password hash for reset) so outstanding
//     tokens self-invalidate the moment that field changes, without a
//     revocation store.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the Service and
//     the lifecycle machine to describe registration, verification, login,
//     and password reset events. Sinks run best-effort (errors are logged)
//     so you can forward to a database or queue without blocking callers.
package accounts
