package storage

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt,
	// so a transiently failing operation is tried at most 4 times.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the backoff base: delays run base * 2^attempt
	// (500ms, 1s, 2s).
	DefaultBaseDelay = 500 * time.Millisecond
)

// Retrier executes store operations with bounded exponential backoff on
// transient errors. Non-retryable and exhausted-retry errors are surfaced
// unchanged; the retrier never swallows an error.
type Retrier struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *log.Logger
}

// NewRetrier creates a Retrier with the default policy.
func NewRetrier(logger *log.Logger) *Retrier {
	return &Retrier{
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		logger:     logger,
	}
}

// NewRetrierWithPolicy creates a Retrier with an explicit retry count and
// backoff base. Used by tests to avoid real half-second sleeps.
func NewRetrierWithPolicy(logger *log.Logger, maxRetries int, baseDelay time.Duration) *Retrier {
	return &Retrier{maxRetries: maxRetries, baseDelay: baseDelay, logger: logger}
}

// retryable reports whether an error classification warrants another attempt.
func retryable(code Code) bool {
	return code == CodeUnavailable || code == CodeDeadlineExceeded
}

// Retry runs fn, retrying on transient errors per the retrier's policy.
// The label names the operation in retry warnings.
func Retry[T any](ctx context.Context, r *Retrier, label string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= r.maxRetries || !retryable(CodeOf(err)) {
			return zero, err
		}

		delay := r.baseDelay << attempt
		r.logger.Warn("retrying operation",
			"op", label,
			"attempt", attempt+1,
			"max", r.maxRetries,
			"delay", delay,
			"error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// RetryVoid is Retry for operations with no result value.
func RetryVoid(ctx context.Context, r *Retrier, label string, fn func(context.Context) error) error {
	_, err := Retry(ctx, r, label, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
