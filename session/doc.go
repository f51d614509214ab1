// Package session holds the identity model (User, Role, Session), its JSON
// cache encoding, the client-side [Cache] over a kv.Store, and the
// server-side Redis [Store] used by the reference session provider.
//
// # Encoding
//
// Cached sessions are JSON envelopes carrying a schema version. Version 1
// payloads (a bare session object) are still accepted and upgraded on read.
//
// # Architecture boundaries
//
// This package owns session persistence and identity types. It does NOT
// issue tokens, check passwords or make access decisions; those belong to
// the provider and guard packages.
//
// # What this package must NOT do
//
//   - Import provider, stores, guard or the root messpass package.
//   - Store password hashes or refresh-token plaintext server-side.
package session
