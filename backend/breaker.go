package backend

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/MrEthical07/messpass/domain"
	"github.com/MrEthical07/messpass/fault"
)

// BreakerConfig tunes the circuit breaker.
type BreakerConfig struct {
	Name string
	// MaxRequests is the number of probe calls allowed while half-open.
	MaxRequests uint32
	// Interval clears failure counts while closed. Zero keeps them.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns the stock breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "backend",
		MaxRequests:         1,
		Interval:            30 * time.Second,
		Timeout:             10 * time.Second,
		ConsecutiveFailures: 3,
	}
}

// Breaker wraps an API with a circuit breaker. Only transport failures
// count against the breaker; not-found, conflict and validation answers
// mean the backend is healthy.
type Breaker struct {
	next API
	cb   *gobreaker.CircuitBreaker
}

var _ API = (*Breaker)(nil)

// WithBreaker wraps next. onChange, if non-nil, is called on every breaker
// state change with online=false while the breaker is open.
func WithBreaker(next API, cfg BreakerConfig, logger logrus.FieldLogger, onChange func(online bool)) *Breaker {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig().ConsecutiveFailures
	}
	threshold := cfg.ConsecutiveFailures

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: isHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("backend circuit breaker state changed")
			}
			if onChange != nil {
				onChange(to != gobreaker.StateOpen)
			}
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Open reports whether calls are currently short-circuited.
func (b *Breaker) Open() bool {
	return b.cb.State() == gobreaker.StateOpen
}

func isHealthy(err error) bool {
	if err == nil {
		return true
	}
	switch fault.KindOf(err) {
	case fault.KindNotFound, fault.KindConflict, fault.KindValidation, fault.KindUnauthorized, fault.KindSessionExpired:
		return true
	}
	return errors.Is(err, context.Canceled)
}

func call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fault.Wrap(fault.KindOffline, err)
		}
		return zero, err
	}
	return out.(T), nil
}

func (b *Breaker) Ping(ctx context.Context) error {
	_, err := call(b, func() (struct{}, error) { return struct{}{}, b.next.Ping(ctx) })
	return err
}

func (b *Breaker) GetMembership(ctx context.Context, userID string) (*domain.Membership, error) {
	return call(b, func() (*domain.Membership, error) { return b.next.GetMembership(ctx, userID) })
}

func (b *Breaker) ListRenewals(ctx context.Context, userID string) ([]domain.RenewalRequest, error) {
	return call(b, func() ([]domain.RenewalRequest, error) { return b.next.ListRenewals(ctx, userID) })
}

func (b *Breaker) CreateRenewal(ctx context.Context, userID string, in domain.RenewalInput) (domain.RenewalRequest, error) {
	return call(b, func() (domain.RenewalRequest, error) { return b.next.CreateRenewal(ctx, userID, in) })
}

func (b *Breaker) ListMeals(ctx context.Context, from, to time.Time) ([]domain.Meal, error) {
	return call(b, func() ([]domain.Meal, error) { return b.next.ListMeals(ctx, from, to) })
}

func (b *Breaker) ListMealPasses(ctx context.Context, userID string) ([]domain.MealPass, error) {
	return call(b, func() ([]domain.MealPass, error) { return b.next.ListMealPasses(ctx, userID) })
}

func (b *Breaker) ListClosures(ctx context.Context) ([]domain.MessClosure, error) {
	return call(b, func() ([]domain.MessClosure, error) { return b.next.ListClosures(ctx) })
}

func (b *Breaker) ListRatings(ctx context.Context, userID string) ([]domain.Rating, error) {
	return call(b, func() ([]domain.Rating, error) { return b.next.ListRatings(ctx, userID) })
}

func (b *Breaker) CreateRating(ctx context.Context, userID string, in domain.RatingInput) (domain.Rating, error) {
	return call(b, func() (domain.Rating, error) { return b.next.CreateRating(ctx, userID, in) })
}

func (b *Breaker) ListAbsences(ctx context.Context, userID string) ([]domain.Absence, error) {
	return call(b, func() ([]domain.Absence, error) { return b.next.ListAbsences(ctx, userID) })
}

func (b *Breaker) CreateAbsence(ctx context.Context, userID string, in domain.AbsenceInput) (domain.Absence, error) {
	return call(b, func() (domain.Absence, error) { return b.next.CreateAbsence(ctx, userID, in) })
}

func (b *Breaker) CancelAbsence(ctx context.Context, userID, absenceID string) (domain.Absence, error) {
	return call(b, func() (domain.Absence, error) { return b.next.CancelAbsence(ctx, userID, absenceID) })
}
