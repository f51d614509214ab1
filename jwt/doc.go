// Package jwt issues and verifies the access tokens handed out by the
// reference session provider.
//
// Tokens carry the user ID, session ID and role. Ed25519 and HS256 signing
// are supported; the algorithm is pinned at parse time.
//
// # What this package must NOT do
//
//   - Decide whether a session is still valid server-side; the provider
//     checks the session table after parsing.
package jwt
