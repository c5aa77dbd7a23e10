package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/catalog-scraper/pkg/log"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// recordingRetrier returns a Retrier with production backoff settings whose
// sleeps are recorded instead of performed.
func recordingRetrier(maxAttempts int) (*Retrier, *[]time.Duration) {
	var slept []time.Duration
	r := &Retrier{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
		log: log.Discard(),
	}
	return r, &slept
}

func TestRetrier_Backoff(t *testing.T) {
	r, _ := recordingRetrier(5)
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // capped
		{10, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestWithRetry_SucceedsOnThirdAttempt(t *testing.T) {
	r, slept := recordingRetrier(3)
	calls := 0

	got, err := WithRetry(context.Background(), r, "load", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "html", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "html", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *slept)
}

func TestWithRetry_PropagatesLastError(t *testing.T) {
	r, slept := recordingRetrier(3)
	calls := 0
	lastErr := errors.New("third failure")

	_, err := WithRetry(context.Background(), r, "load", func(ctx context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, lastErr
		}
		return 0, errors.New("earlier failure")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRetryFailed)
	assert.ErrorIs(t, err, lastErr)
	assert.Equal(t, 3, calls)
	assert.Len(t, *slept, 2, "no sleep after the final attempt")
}

func TestRetrier_Do_SingleAttemptWhenBudgetIsZero(t *testing.T) {
	r, slept := recordingRetrier(0)
	calls := 0

	err := r.Do(context.Background(), "write", func(ctx context.Context) error {
		calls++
		return errors.New("nope")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestRetrier_PermanentErrorStopsRetries(t *testing.T) {
	r, slept := recordingRetrier(5)
	calls := 0
	notFound := errors.New("404")

	err := r.Do(context.Background(), "load", func(ctx context.Context) error {
		calls++
		return Permanent(notFound)
	})

	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, notFound)
	assert.NotErrorIs(t, err, utils.ErrRetryFailed)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestRetrier_OnRetryHook(t *testing.T) {
	r, _ := recordingRetrier(3)
	var attempts []int
	r.OnRetry = func(attempt int, delay time.Duration, err error) {
		attempts = append(attempts, attempt)
	}

	_ = r.Do(context.Background(), "load", func(ctx context.Context) error { return errors.New("x") })
	assert.Equal(t, []int{0, 1}, attempts)
}

func TestRetrier_ContextCancelledDuringBackoff(t *testing.T) {
	r := &Retrier{MaxAttempts: 3, BaseDelay: time.Minute, MaxDelay: time.Minute, log: log.Discard()}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, "load", func(ctx context.Context) error {
			calls++
			return errors.New("transient")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorContains(t, err, "during backoff")
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}

func TestNewRetrier_FromConfig(t *testing.T) {
	cfg := testScraperConfig()
	r := NewRetrier(cfg, nil)
	assert.Equal(t, cfg.MaxRetries, r.MaxAttempts)
	assert.Equal(t, cfg.InitialRetryDelay, r.BaseDelay)
	assert.Equal(t, cfg.MaxRetryDelay, r.MaxDelay)
}
