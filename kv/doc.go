// Package kv provides the persistent key-value store used to cache the
// signed-in session and user across process restarts.
//
// A missing key is reported as ("", false, nil) by every implementation and
// is never an error. [Memory] serves tests and ephemeral clients, [Redis]
// persists to a Redis server, and [Encrypted] wraps any [Store] with
// XChaCha20-Poly1305 so cached tokens are not readable at rest.
package kv
