// Package guard decides what a screen subtree may render.
//
// [Decide] is a pure function over a [Snapshot] of identity and readiness
// state. It returns Loading, Redirect(path) or Allow, evaluated in a fixed
// order where the first matching rule wins:
//
//  1. Auth not initialized, or membership required and not initialized: Loading.
//  2. Auth required and no session: Redirect to sign-in.
//  3. Roles restricted and the user's role not allowed: Redirect to the home
//     of the user's actual role, or root when the role is unset or unknown.
//  4. Membership required and not active: Redirect to renewal.
//  5. Allow.
//
// Readiness comes first so unloaded state is never mistaken for a denial.
// The role fallback only ever targets a role home or root, so redirects
// cannot loop between restricted subtrees.
//
// # What this package must NOT do
//
//   - Read stores or the lifecycle registry directly; callers build the
//     Snapshot.
//   - Persist decisions.
package guard
