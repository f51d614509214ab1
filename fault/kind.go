package fault

import (
	"context"
	"errors"
	"net"
)

// Kind classifies an error for presentation and recovery.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNetwork
	KindTimeout
	KindOffline
	KindUnauthorized
	KindSessionExpired
	KindValidation
	KindConflict
	KindNotFound
	KindStoreInit
	KindStoreUpdate
)

var kindNames = [...]string{
	KindUnknown:        "unknown",
	KindNetwork:        "network",
	KindTimeout:        "timeout",
	KindOffline:        "offline",
	KindUnauthorized:   "unauthorized",
	KindSessionExpired: "session_expired",
	KindValidation:     "validation",
	KindConflict:       "conflict",
	KindNotFound:       "not_found",
	KindStoreInit:      "store_init",
	KindStoreUpdate:    "store_update",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

var (
	// ErrNetwork marks failures reaching the remote backend.
	ErrNetwork = errors.New("network error")
	// ErrTimeout marks remote calls that did not answer in time.
	ErrTimeout = errors.New("request timed out")
	// ErrOffline marks calls refused because the device or backend is offline.
	ErrOffline = errors.New("offline")
	// ErrUnauthorized marks missing or rejected credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionExpired marks an expired or revoked session.
	ErrSessionExpired = errors.New("session expired")
	// ErrValidation marks rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a write that conflicts with existing state.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks a missing remote record.
	ErrNotFound = errors.New("not found")
	// ErrStoreInit marks a failed store load.
	ErrStoreInit = errors.New("store initialization failed")
	// ErrStoreUpdate marks a failed store mutation.
	ErrStoreUpdate = errors.New("store update failed")
)

var sentinels = []struct {
	err  error
	kind Kind
}{
	{ErrNetwork, KindNetwork},
	{ErrTimeout, KindTimeout},
	{ErrOffline, KindOffline},
	{ErrUnauthorized, KindUnauthorized},
	{ErrSessionExpired, KindSessionExpired},
	{ErrValidation, KindValidation},
	{ErrConflict, KindConflict},
	{ErrNotFound, KindNotFound},
	{ErrStoreInit, KindStoreInit},
	{ErrStoreUpdate, KindStoreUpdate},
}

// Sentinel returns the sentinel error for k, or nil for KindUnknown.
func Sentinel(k Kind) error {
	for _, s := range sentinels {
		if s.kind == k {
			return s.err
		}
	}
	return nil
}

// Error is an error tagged with a Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against the sentinel of the wrapped kind, so
// errors.Is(Wrap(KindConflict, err), ErrConflict) holds.
func (e *Error) Is(target error) bool {
	s := Sentinel(e.Kind)
	return s != nil && s == target
}

// Wrap tags err with kind. A nil err yields nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf classifies err. Specific kinds found anywhere in the chain win over
// the store-init and store-update wrappers, so a validation error returned
// from a store action still reports KindValidation.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	for _, s := range sentinels {
		if s.kind == KindStoreInit || s.kind == KindStoreUpdate {
			continue
		}
		if errors.Is(err, s.err) {
			return s.kind
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	switch {
	case errors.Is(err, ErrStoreInit):
		return KindStoreInit
	case errors.Is(err, ErrStoreUpdate):
		return KindStoreUpdate
	}
	return KindUnknown
}
