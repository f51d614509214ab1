// Package messpass is the client core of a mess subscription app: the
// session, the domain stores that depend on it, and the access guard that
// decides which screen a user may see.
//
// Build an [App] with [New] and [Builder.Build], call [App.Start], then ask
// [App.Decide] before rendering a protected route. Decide never blocks; it
// answers Loading until the stores it depends on are ready.
//
// # Architecture boundaries
//
// This package wires the pieces together: provider events feed the auth
// store, the lifecycle manager orders store loads, and guard turns a state
// snapshot into a Decision. Each piece lives in its own package and can be
// used alone.
//
// # What this package must NOT do
//
//   - Render anything or know about a UI toolkit.
//   - Hold global state; every App is independent.
//   - Import sub-packages that import messpass (metrics/export/*).
package messpass
