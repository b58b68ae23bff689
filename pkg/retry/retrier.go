package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/harvest-service/harvest_service/internal/domain/errors"
)

// Retrier re-runs an operation under a Policy until it succeeds, the
// error classifies as fatal, or the attempt budget runs out.
type Retrier struct {
	policy  Policy
	backoff *Backoff
	logger  *zap.Logger
}

// NewRetrier creates a retrier. The policy must validate; a broken
// policy is a programming error, not a runtime condition.
func NewRetrier(policy Policy, logger *zap.Logger) *Retrier {
	if err := policy.Validate(); err != nil {
		panic(fmt.Sprintf("invalid retry policy: %v", err))
	}
	return &Retrier{
		policy:  policy,
		backoff: NewBackoff(policy),
		logger:  logger,
	}
}

// Do runs the operation with backoff between attempts. Context
// cancellation is honored both before an attempt and during the wait.
func (r *Retrier) Do(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("operation succeeded after retry",
					zap.Int("attempt", attempt))
			}
			return nil
		}

		if !r.isRetryable(lastErr) {
			return lastErr
		}

		if attempt >= r.policy.MaxRetries {
			break
		}

		wait := r.backoff.Calculate(attempt + 1)
		r.logger.Debug("retrying operation",
			zap.Error(lastErr),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	r.logger.Warn("retry budget exhausted",
		zap.Error(lastErr),
		zap.Int("max_retries", r.policy.MaxRetries))
	return fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

func (r *Retrier) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if r.policy.RetryableFunc != nil {
		return r.policy.RetryableFunc(err)
	}
	return apperrors.ShouldRetry(err)
}
