// Package provider defines the session provider contract consumed by the
// auth store, and Local, a self-contained provider for development,
// simulations and tests.
//
// A provider owns credentials and token issuance. It reports state changes
// as Events; the auth store mirrors them.
//
// # Architecture boundaries
//
// Local stores sessions server-side through session.Store, signs access
// tokens with the jwt package, hashes passwords with the password package
// and throttles sign-in with internal/rate. Account records live behind the
// Directory interface.
//
// # What this package must NOT do
//
//   - Cache sessions on the device; that is the auth store's job.
//   - Hold membership or meal data.
package provider
