package messpass

import "errors"

var (
	// ErrConfigInvalid wraps every configuration problem.
	ErrConfigInvalid = errors.New("invalid configuration")
	// ErrBuilderUsed is returned by a second Build call.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrBackendRequired is returned by Build without a data backend.
	ErrBackendRequired = errors.New("backend API required")
	// ErrRedisRequired is returned when a Redis-backed component has no
	// client.
	ErrRedisRequired = errors.New("redis client required")
	// ErrSigningKeyRequired is returned when the built-in provider has no
	// signing key.
	ErrSigningKeyRequired = errors.New("signing key required")
	// ErrNotSignedIn is returned by user-scoped actions without a session.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrSignUpUnsupported is returned by SignUp when the provider cannot
	// register accounts.
	ErrSignUpUnsupported = errors.New("provider does not support sign-up")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("app closed")
)
