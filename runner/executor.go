package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/oohgrid/billboard-etl/utils"
)

// Executor runs an operation with whatever retry or scheduling semantics the
// deployment wants. The pipeline only depends on this interface; swapping in
// an external workflow engine does not touch the stages.
type Executor interface {
	RunWithRetry(ctx context.Context, operationName string, fn func() error) error
}

// RetryConfig is the default Executor: fixed-delay retries. The upstream
// profile API rate-limits in whole-minute windows, so the delay stays
// constant rather than backing off.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Logger      *utils.Logger
}

// RunWithRetry executes fn until it succeeds, attempts are exhausted, or the
// context is cancelled.
func (r *RetryConfig) RunWithRetry(ctx context.Context, operationName string, fn func() error) error {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	logger := r.Logger
	if logger == nil {
		logger = utils.NewStdoutLogger()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < attempts {
			logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
				operationName, attempt, attempts, lastErr, r.Delay)
			select {
			case <-time.After(r.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempts, lastErr)
}
