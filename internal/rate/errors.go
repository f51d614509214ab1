package rate

import "errors"

var (
	// ErrRateLimited means the identifier has used its attempt budget.
	ErrRateLimited = errors.New("too many sign-in attempts")
	// ErrRedisUnavailable wraps counter store failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
