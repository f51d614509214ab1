package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config tunes the sign-in limiter. MaxAttempts <= 0 disables throttling.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	PerIP       bool
}

// Limiter counts failed sign-ins.
type Limiter struct {
	rdb redis.UniversalClient
	cfg Config
}

// New returns a Limiter over rdb.
func New(rdb redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{rdb: rdb, cfg: cfg}
}

// Enabled reports whether attempts are being counted.
func (l *Limiter) Enabled() bool {
	return l != nil && l.cfg.MaxAttempts > 0
}

// Check returns ErrRateLimited when the identifier or ip is over budget.
func (l *Limiter) Check(ctx context.Context, identifier, ip string) error {
	if !l.Enabled() {
		return nil
	}
	for _, key := range l.keys(identifier, ip) {
		n, err := l.rdb.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if n >= int64(l.cfg.MaxAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// Fail records a failed attempt. It returns ErrRateLimited once the attempt
// that was just recorded exhausts the budget.
func (l *Limiter) Fail(ctx context.Context, identifier, ip string) error {
	if !l.Enabled() {
		return nil
	}
	limited := false
	for _, key := range l.keys(identifier, ip) {
		n, err := l.rdb.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if n == 1 {
			if err := l.rdb.Expire(ctx, key, l.cfg.Window).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}
		if n >= int64(l.cfg.MaxAttempts) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the per-identifier counter after a successful sign-in. The
// per-IP counter is left to expire.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	if !l.Enabled() {
		return nil
	}
	if err := l.rdb.Del(ctx, identifierKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current failure count for identifier.
func (l *Limiter) Attempts(ctx context.Context, identifier string) (int, error) {
	n, err := l.rdb.Get(ctx, identifierKey(identifier)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

func (l *Limiter) keys(identifier, ip string) []string {
	keys := []string{identifierKey(identifier)}
	if l.cfg.PerIP && ip != "" {
		keys = append(keys, "mp:sip:"+ip)
	}
	return keys
}

func identifierKey(identifier string) string {
	return "mp:si:" + strings.ToLower(strings.TrimSpace(identifier))
}
