package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSleeper records requested delays without waiting.
type fakeSleeper struct {
	delays []time.Duration
}

func (f *fakeSleeper) sleep(_ context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)
	return nil
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), RetryConfig{Sleep: (&fakeSleeper{}).sleep}, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	fs := &fakeSleeper{}
	calls := 0
	err := Do(context.Background(), RetryConfig{MaxAttempts: 3, Sleep: fs.sleep}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("rate limited"), 429)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, fs.delays, 2)
}

func TestDo_LinearBackoffDelays(t *testing.T) {
	t.Parallel()

	fs := &fakeSleeper{}
	cfg := RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Strategy:    BackoffLinear,
		Sleep:       fs.sleep,
	}
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		return NewTransientError(errors.New("busy"), 503)
	})
	require.Error(t, err)
	// Linear: base*1, base*2.
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, fs.delays)
}

func TestDo_ExponentialBackoffDelays(t *testing.T) {
	t.Parallel()

	fs := &fakeSleeper{}
	cfg := RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		Strategy:    BackoffExponential,
		Sleep:       fs.sleep,
	}
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		return NewTransientError(errors.New("busy"), 502)
	})
	require.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, fs.delays)
}

func TestDo_MaxDelayCap(t *testing.T) {
	t.Parallel()

	fs := &fakeSleeper{}
	cfg := RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   20 * time.Second,
		MaxDelay:    25 * time.Second,
		Strategy:    BackoffLinear,
		Sleep:       fs.sleep,
	}
	_ = Do(context.Background(), cfg, func(ctx context.Context) error {
		return NewTransientError(errors.New("busy"), 503)
	})
	assert.Equal(t, []time.Duration{20 * time.Second, 25 * time.Second}, fs.delays)
}

func TestDo_NonTransientNotRetried(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), RetryConfig{Sleep: (&fakeSleeper{}).sleep}, func(ctx context.Context) error {
		calls++
		return errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelStopsRetries(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, RetryConfig{MaxAttempts: 5, Sleep: (&fakeSleeper{}).sleep}, func(ctx context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("timeout"), 504)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_PreservesValue(t *testing.T) {
	t.Parallel()

	fs := &fakeSleeper{}
	calls := 0
	got, err := DoVal(context.Background(), RetryConfig{MaxAttempts: 2, Sleep: fs.sleep}, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(errors.New("flaky"), 500)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestDoVal_ExhaustionReturnsLastError(t *testing.T) {
	t.Parallel()

	fs := &fakeSleeper{}
	_, err := DoVal(context.Background(), RetryConfig{MaxAttempts: 3, Sleep: fs.sleep}, func(ctx context.Context) (int, error) {
		return 0, NewTransientError(errors.New("still down"), 503)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still down")
	assert.Len(t, fs.delays, 2)
}

func TestDo_OnRetryCallback(t *testing.T) {
	t.Parallel()

	var attempts []int
	cfg := RetryConfig{
		MaxAttempts: 3,
		Sleep:       (&fakeSleeper{}).sleep,
		OnRetry: func(attempt int, err error) {
			attempts = append(attempts, attempt)
		},
	}
	_ = Do(context.Background(), cfg, func(ctx context.Context) error {
		return NewTransientError(errors.New("busy"), 429)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}
