package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

// SecretSize is the length of the random part of a refresh token.
const SecretSize = 32

const rawSize = 16 + SecretSize

// ErrMalformed is returned for refresh tokens that do not decode.
var ErrMalformed = errors.New("malformed refresh token")

// Secret is the random part of a refresh token. Only its hash is stored.
type Secret [SecretSize]byte

func NewSecret() (Secret, error) {
	var s Secret
	_, err := rand.Read(s[:])
	return s, err
}

// Hash is the value kept in the session table.
func (s Secret) Hash() [32]byte {
	return sha256.Sum256(s[:])
}

// Encode binds secret to sessionID, which must be a non-zero UUID. The
// token is base64url without padding.
func Encode(sessionID string, secret Secret) (string, error) {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return "", err
	}
	if sid == uuid.Nil {
		return "", ErrMalformed
	}
	var raw [rawSize]byte
	copy(raw[:16], sid[:])
	copy(raw[16:], secret[:])
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// Decode splits a token into its session ID and secret. A zero session ID
// is rejected.
func Decode(tok string) (string, Secret, error) {
	var secret Secret
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) != rawSize {
		return "", secret, ErrMalformed
	}
	sid := uuid.UUID(raw[:16])
	if sid == uuid.Nil {
		return "", secret, ErrMalformed
	}
	copy(secret[:], raw[16:])
	return sid.String(), secret, nil
}

// New returns a fresh token for sessionID and the hash to store.
func New(sessionID string) (string, [32]byte, error) {
	secret, err := NewSecret()
	if err != nil {
		return "", [32]byte{}, err
	}
	tok, err := Encode(sessionID, secret)
	if err != nil {
		return "", [32]byte{}, err
	}
	return tok, secret.Hash(), nil
}
