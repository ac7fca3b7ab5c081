package deltalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Default retry policy for transient storage errors.
const (
	DefaultRetryMaxTries        = 4
	DefaultRetryInitialInterval = 200 * time.Millisecond
	DefaultRetryMaxInterval     = 5 * time.Second
)

// RetryPolicy bounds the exponential backoff applied to storage calls.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        DefaultRetryMaxTries,
		InitialInterval: DefaultRetryInitialInterval,
		MaxInterval:     DefaultRetryMaxInterval,
	}
}

// retry runs op until it succeeds, fails permanently, or the policy is exhausted.
// Authentication, not-found and corruption errors are never retried.
func retry[T any](ctx context.Context, policy RetryPolicy, logger *slog.Logger, what string, op func() (T, error)) (T, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = policy.InitialInterval
	expo.MaxInterval = policy.MaxInterval

	wrapped := func() (T, error) {
		value, err := op()
		if err == nil {
			return value, nil
		}

		if isPermanent(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return value, backoff.Permanent(err)
		}

		return value, err
	}

	return backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(max(policy.MaxTries, 1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("retrying storage call", "op", what, "wait", wait, "error", err)
		}),
	)
}
