package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// RetryPolicy bounds the exponential backoff applied to transient failures.
type RetryPolicy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Jitter is the randomization factor applied to each interval; 0 disables it.
	Jitter float64
}

// DefaultRetryPolicy returns three attempts starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:        3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Jitter:          0.1,
	}
}

// Retry runs op until it succeeds, fails with an error that is not a
// TransientFetchError, or the policy's attempts are used up. Only transient
// failures are retried. The last error is returned when attempts run out.
func Retry[T any](ctx context.Context, p RetryPolicy, logger *zap.Logger, op func(context.Context) (T, error)) (T, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.RandomizationFactor = p.Jitter

	attempts := 0
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		v, err := op(ctx)
		if err != nil && !IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.Attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Debug("retrying after transient failure",
				zap.Int("attempt", attempts), zap.Duration("next", next), zap.Error(err))
		}),
	)
	if err == nil {
		return res, nil
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	if IsTransient(err) && attempts >= p.Attempts {
		return res, fmt.Errorf("gave up after %d attempts: %w", attempts, err)
	}
	return res, err
}
