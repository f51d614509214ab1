// Package audit relays application events (sign-in, sign-out, store
// transitions, guard redirects) to a Sink without blocking the caller.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, logrus, no-op).
//   - [Dispatcher]: buffered relay that either drops or blocks when full.
//
// # What this package must NOT do
//
//   - Decide which events to emit; the root package does that.
//   - Import sibling packages of this module.
package audit
