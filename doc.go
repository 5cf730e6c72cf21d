// Package auth holds the session identity core of the agreements dashboard:
// who the current user is, which profile belongs to them, and which view they
// are allowed to land on.
//
// Session lifecycle:
//   - SessionManager is the process-wide state holder. Construct one at start
//     up, call Start to read the current provider session and subscribe to
//     change notifications, and Close it on shutdown. State is exposed as
//     SessionState snapshots; observers Subscribe to receive every mutation.
//   - Identity change events schedule a profile resolution through a
//     Debouncer. Bursts of events collapse into a single resolution and at
//     most one resolution is in flight at any time.
//   - Resolved profiles are applied only when they still belong to the current
//     identity. Results for a user that signed out or was replaced are dropped.
//
// Profile resolution:
//   - ProfileResolver reads the ProfileStore. When the store fails (missing
//     row, access denied, transport error) it synthesizes a fallback profile
//     from the identity metadata so the dashboard never stays in a loading
//     state because of the store.
//
// Routing:
//   - RouteResolver maps a SessionState and a requested path to a
//     RouteDecision: render, redirect or loading placeholder. Super admins are
//     redirected to their admin equivalents, everyone else gets the business
//     view and one of its subviews.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter used by the client facade,
//     the provisioner and the resolver. Errors are logged, never returned.
package auth
