package ledger

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/bamboobank/bamboo-bank-go/internal/port"
)

const conflictBaseBackoff = 5 * time.Millisecond

// ConflictObserver is notified whenever a commit is retried after a
// write conflict. Wired to the metrics registry in main.
type ConflictObserver interface {
	IncrConflictRetry(operation string)
}

// Runner executes atomic units of work against the store.
type Runner struct {
	store       port.DocStore
	maxAttempts int
	observer    ConflictObserver
}

// NewRunner creates a transaction runner. observer may be nil.
func NewRunner(store port.DocStore, maxAttempts int, observer ConflictObserver) *Runner {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Runner{store: store, maxAttempts: maxAttempts, observer: observer}
}

// Run executes fn as one atomic unit, retrying the whole function with a
// fresh snapshot whenever the commit detects a write conflict. Business
// errors from fn abort immediately with nothing written; only conflict
// retries are automatic and invisible to callers.
func (r *Runner) Run(ctx context.Context, operation string, fn func(*Tx) error) error {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := newTx(ctx, r.store)
		if err := fn(tx); err != nil {
			return err
		}

		err := tx.commit()
		if err == nil {
			return nil
		}
		if !errors.Is(err, port.ErrWriteConflict) {
			return err
		}

		if r.observer != nil {
			r.observer.IncrConflictRetry(operation)
		}
		if attempt < r.maxAttempts {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * conflictBaseBackoff
			jitter := time.Duration(rand.Int63n(int64(backoff) + 1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}
	}

	return &domain.ErrConflictRetryExhausted{Operation: operation, Attempts: r.maxAttempts}
}
