// Package token encodes opaque refresh tokens.
//
// A token is base64url(session UUID || 32 random bytes). The session table
// stores only the SHA-256 of the random part, so a leaked table cannot be
// replayed, and a token presented for the wrong session is rejected before
// Redis is consulted.
package token
