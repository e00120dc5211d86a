// Package resilience provides fault-tolerance patterns used around the
// hosted store: retry with exponential backoff, circuit breaker, and a
// per-key in-flight guard.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds resilience parameters.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

// maxBackoff caps a single wait so a high retry count cannot stall a
// request for longer than the HTTP timeout budget.
const maxBackoff = 5 * time.Second

// RetryWithBackoff executes fn until it succeeds or the retry budget
// runs out. Waits double each attempt, carry jitter, and respect
// context cancellation.
func RetryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	backoff := cfg.InitialBackoff
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt >= cfg.MaxRetries {
			return lastErr
		}

		wait := backoff + time.Duration(rand.Int63n(int64(backoff/2)+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// NewCircuitBreaker creates a breaker tuned for the hosted store:
// trip after a sustained failure majority, probe again after 10s.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // half-open: allow 3 probes
		Interval:    30 * time.Second, // closed: reset counters every 30s
		Timeout:     10 * time.Second, // open -> half-open after 10s
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
	})
}
