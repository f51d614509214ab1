package kv

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the backing storage cannot be reached.
var ErrUnavailable = errors.New("kv backend unavailable")

// Store is a string key-value store.
type Store interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
