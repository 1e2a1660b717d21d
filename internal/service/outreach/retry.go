package outreach

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	domainerrors "github.com/devsync/outreach-backend/internal/domain/errors"
)

const (
	retryBaseDelay  = 1 * time.Second
	retryMultiplier = 4
	retryMaxDelay   = 16 * time.Second
	maxRetries      = 3
)

// sleepFunc waits for d or until ctx is done. Injectable so retry tests do
// not spend wall-clock time.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retrier runs provider operations with exponential backoff. Delays follow
// 1s, 4s, 16s; only retryable provider errors are retried and the initial
// attempt plus maxRetries bounds the provider calls.
type retrier struct {
	sleep sleepFunc
}

func newRetrier() *retrier {
	return &retrier{sleep: sleepWithContext}
}

func newBackoffSchedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryBaseDelay
	b.Multiplier = retryMultiplier
	b.MaxInterval = retryMaxDelay
	b.RandomizationFactor = 0
	return b
}

// do invokes op until it succeeds, fails permanently, or the retry budget
// runs out. The last error is returned classified.
func (r *retrier) do(ctx context.Context, provider string, op func(ctx context.Context) error) error {
	schedule := newBackoffSchedule()

	var lastErr *domainerrors.AppError
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		lastErr = classifyProviderError(provider, err)
		if !lastErr.Retryable || attempt >= maxRetries {
			return lastErr
		}
		if err := r.sleep(ctx, schedule.NextBackOff()); err != nil {
			return lastErr
		}
	}
}
