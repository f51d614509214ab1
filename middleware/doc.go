// Package middleware adapts the access guard to net/http.
//
// # Guards
//
//   - [Guard] maps a guard decision to a response: Allow calls the next
//     handler, Redirect answers 303, Loading answers 503 with Retry-After.
//   - [RequireMember], [RequireAdmin] and [RequireRegular] are the stock
//     option sets for the three route groups.
//   - [Token] checks a bearer access token from the built-in provider.
//
// Decisions come from a [Decider], normally *messpass.App. This package
// makes no decisions of its own and does no I/O.
package middleware
