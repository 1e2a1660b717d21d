package outreach

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/devsync/outreach-backend/internal/domain/errors"
)

func newTestRetrier() (*retrier, *[]time.Duration) {
	var slept []time.Duration
	r := &retrier{sleep: func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}}
	return r, &slept
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	r, slept := newTestRetrier()

	calls := 0
	err := r.do(context.Background(), "test", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 4 * time.Second}, *slept)
}

func TestRetryExhaustsBudget(t *testing.T) {
	r, slept := newTestRetrier()

	calls := 0
	err := r.do(context.Background(), "test", func(context.Context) error {
		calls++
		return errors.New("429 too many requests")
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls, "initial attempt plus three retries")
	assert.Equal(t, []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}, *slept)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	r, slept := newTestRetrier()

	calls := 0
	err := r.do(context.Background(), "test", func(context.Context) error {
		calls++
		return errors.New("550 invalid recipient")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
	assert.False(t, domainerrors.IsRetryable(err))
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &retrier{sleep: func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}}

	calls := 0
	err := r.do(ctx, "test", func(context.Context) error {
		calls++
		return errors.New("timeout")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestClassifyProviderError(t *testing.T) {
	tests := []struct {
		msg       string
		retryable bool
	}{
		{"429 too many requests", true},
		{"500 internal server error", true},
		{"connection timed out", true},
		{"401 unauthorized", false},
		{"403 forbidden", false},
		{"404 not found", false},
		{"invalid recipient address", false},
		{"address is blacklisted", false},
		{"recipient unsubscribed", false},
		{"something entirely new", true},
	}
	for _, tt := range tests {
		appErr := classifyProviderError("test", errors.New(tt.msg))
		assert.Equal(t, tt.retryable, appErr.Retryable, tt.msg)
	}
}

func TestClassifyPassesThroughAppErrors(t *testing.T) {
	orig := domainerrors.NewPermanentProviderError("ses", "bad address")
	got := classifyProviderError("ses", orig)
	assert.Same(t, orig, got)
}
