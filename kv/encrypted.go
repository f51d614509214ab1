package kv

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrInvalidKey is returned for encryption keys that are not 32 bytes.
	ErrInvalidKey = errors.New("encryption key must be 32 bytes")
	// ErrTampered is returned when a stored value fails authentication.
	ErrTampered = errors.New("stored value failed authentication")
)

// Encrypted seals values with XChaCha20-Poly1305 before handing them to the
// wrapped Store. The key name is bound as additional data, so a value copied
// under another key does not decrypt.
type Encrypted struct {
	inner Store
	aead  cipher.AEAD
}

func NewEncrypted(inner Store, key []byte) (*Encrypted, error) {
	if inner == nil {
		return nil, errors.New("inner store required")
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Encrypted{inner: inner, aead: aead}, nil
}

// ParseKey decodes a 32-byte key given as hex or standard base64.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := hex.DecodeString(s); err == nil && len(b) == chacha20poly1305.KeySize {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == chacha20poly1305.KeySize {
		return b, nil
	}
	return nil, ErrInvalidKey
}

func (e *Encrypted) GetString(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := e.inner.GetString(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}

	sealed, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrTampered, err)
	}
	ns := e.aead.NonceSize()
	if len(sealed) < ns {
		return "", false, ErrTampered
	}
	plain, err := e.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(key))
	if err != nil {
		return "", false, ErrTampered
	}
	return string(plain), true, nil
}

func (e *Encrypted) Set(ctx context.Context, key, value string) error {
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(value)+e.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return e.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(sealed))
}

func (e *Encrypted) Delete(ctx context.Context, key string) error {
	return e.inner.Delete(ctx, key)
}
