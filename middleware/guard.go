package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/MrEthical07/messpass/guard"
)

// Decider evaluates the access guard. *messpass.App implements it.
type Decider interface {
	Decide(opts guard.Options) guard.Decision
}

// RetryAfter is the Retry-After value, in seconds, sent while the guard is
// still loading.
const RetryAfter = 1

type decisionContextKey struct{}

// DecisionFromContext returns the Allow decision stored by Guard.
func DecisionFromContext(ctx context.Context) (guard.Decision, bool) {
	d, ok := ctx.Value(decisionContextKey{}).(guard.Decision)
	return d, ok
}

// Guard protects a subtree with opts. Loading answers 503 with
// Retry-After, Redirect answers 303 to the target, and a redirect back to
// the requested path answers 403 so a client cannot loop.
func Guard(d Decider, opts guard.Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d == nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}

			dec := d.Decide(opts)
			switch dec.Kind {
			case guard.Allow:
				ctx := context.WithValue(r.Context(), decisionContextKey{}, dec)
				next.ServeHTTP(w, r.WithContext(ctx))
			case guard.Redirect:
				if dec.Path == r.URL.Path {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
				http.Redirect(w, r, dec.Path, http.StatusSeeOther)
			default:
				w.Header().Set("Retry-After", strconv.Itoa(RetryAfter))
				http.Error(w, "loading", http.StatusServiceUnavailable)
			}
		})
	}
}
