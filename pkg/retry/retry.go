package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string     { return e.err.Error() }
func (e *retryableError) IsRetryable() bool { return true }
func (e *retryableError) Unwrap() error     { return e.err }

func NewRetryableError(err error) RetryableError {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

// Do runs fn under the policy's exponential backoff. Fatal errors stop
// retrying immediately; everything else is treated as retryable. onRetry,
// if non-nil, is invoked before each subsequent attempt.
func Do(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.InitialInterval
	exp.MaxInterval = policy.MaxInterval
	exp.Multiplier = policy.Multiplier
	exp.MaxElapsedTime = policy.MaxElapsedTime

	var b backoff.BackOff = exp
	b = backoff.WithContext(b, ctx)
	b = backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1))

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()

		if err == nil {
			return nil
		}

		var fatalErr FatalError
		if errors.As(err, &fatalErr) && fatalErr.IsFatal() {
			return backoff.Permanent(err)
		}

		var retryableErr RetryableError
		if !errors.As(err, &retryableErr) {
			err = NewRetryableError(err)
		}

		if onRetry != nil && attempt < policy.MaxAttempts {
			onRetry(attempt, err, nextDelay(attempt, policy))
		}

		return err
	}

	return backoff.Retry(operation, b)
}

func nextDelay(attempt int, policy Policy) time.Duration {
	d := float64(policy.InitialInterval) * math.Pow(policy.Multiplier, float64(attempt))
	if d > float64(policy.MaxInterval) {
		return policy.MaxInterval
	}
	return time.Duration(d)
}
