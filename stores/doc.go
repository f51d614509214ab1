// Package stores holds the client-side domain stores: auth, membership,
// meals, absences and network connectivity.
//
// Every store is built on [Store], which owns an immutable [State] value and
// runs each action through one template:
//
//   - begin: the in-flight count goes up, IsLoading is set and Err cleared;
//   - the remote call runs under the caller's context;
//   - on success the action's reducer is applied to the latest state;
//   - on failure Err holds a human-readable message and the error is
//     returned to the caller;
//   - in every case, panics included, the in-flight count goes down and
//     IsLoading is recomputed from it.
//
// Loads are generation-guarded: only the newest load may apply its result.
// Reset starts a new epoch and discards the results of every action started
// before it.
//
// # What this package must NOT do
//
//   - Track lifecycle readiness; that is the lifecycle.Manager's job.
//   - Mutate a State after it has been published.
package stores
