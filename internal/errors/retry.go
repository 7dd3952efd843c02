package errors

import (
	"context"
	"errors"
	"math"
	"time"
)

const (
	MaxRetries        = 3
	InitialBackoff    = 100 * time.Millisecond
	MaxBackoff        = 5 * time.Second
	BackoffMultiplier = 2.0
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy drives Retry. Delay decides whether an error is retried and how long to wait first.
type RetryPolicy struct {
	MaxAttempts int
	Delay       func(err error, attempt int) (time.Duration, bool)
	Sleep       SleepFunc
	OnRetry     func(err error, attempt int, delay time.Duration)
}

// ErrRetriesExhausted wraps the last error once MaxAttempts calls have failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

type exhaustedError struct {
	attempts int
	last     error
}

func (e *exhaustedError) Error() string {
	return ErrRetriesExhausted.Error() + ": " + e.last.Error()
}

func (e *exhaustedError) Unwrap() []error { return []error{ErrRetriesExhausted, e.last} }

// Retry calls fn until it succeeds, the policy declines the error, or MaxAttempts is reached.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	sleep := policy.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}

		if policy.Delay == nil {
			return err
		}

		delay, retry := policy.Delay(err, attempt)
		if !retry {
			return err
		}

		if attempt == maxAttempts {
			break
		}

		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt, delay)
		}

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}

	return &exhaustedError{attempts: maxAttempts, last: err}
}

// WithRetry retries retryable AppErrors with exponential backoff.
func WithRetry(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}

	policy := RetryPolicy{
		MaxAttempts: MaxRetries + 1,
		Delay: func(err error, attempt int) (time.Duration, bool) {
			return calculateBackoffDuration(attempt), IsRetryable(err)
		},
	}

	err := Retry(ctx, policy, func(context.Context) error { return fn() })

	var exhausted *exhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.last
	}
	return err
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Retryable
	}

	return false
}

func calculateBackoffDuration(attempt int) time.Duration {
	delay := float64(InitialBackoff) * math.Pow(BackoffMultiplier, float64(attempt))
	backoff := time.Duration(delay)
	if backoff > MaxBackoff {
		return MaxBackoff
	}

	return backoff
}
