package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/log"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier runs an operation up to MaxAttempts times with capped exponential
// backoff between attempts: min(BaseDelay*2^attempt, MaxDelay). No delay
// follows the final attempt.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Sleep       SleepFunc                                           // Defaults to a context-aware timer
	OnRetry     func(attempt int, delay time.Duration, err error) // Optional hook, e.g. metrics
	log         *logrus.Entry
}

// NewRetrier builds a Retrier from scraper settings. MaxRetries is the
// attempt budget; values below one still make a single attempt.
func NewRetrier(cfg config.ScraperConfig, logger *logrus.Entry) *Retrier {
	return &Retrier{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   cfg.InitialRetryDelay,
		MaxDelay:    cfg.MaxRetryDelay,
		log:         log.EntryOrDiscard(logger).WithField("component", "retry"),
	}
}

// permanentError marks an error that must not be retried
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so the Retrier returns it immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Backoff returns the delay after the given 0-based failed attempt
func (r *Retrier) Backoff(attempt int) time.Duration {
	base := r.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	maxDelay := r.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}
	delay := float64(base) * math.Pow(2, float64(attempt))
	if delay <= 0 || delay > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(delay)
}

func (r *Retrier) attempts() int {
	if r.MaxAttempts < 1 {
		return 1
	}
	return r.MaxAttempts
}

// Do runs op until it succeeds, returns a Permanent error, or the attempt
// budget is spent. The final failure is wrapped in utils.ErrRetryFailed.
func (r *Retrier) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	_, err := WithRetry(ctx, r, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// WithRetry is Do for operations that return a value.
func WithRetry[T any](ctx context.Context, r *Retrier, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := log.EntryOrDiscard(r.log)
	maxAttempts := r.attempts()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%s: context done (%v) after error: %w", name, err, lastErr)
			}
			return zero, fmt.Errorf("%s: %w", name, err)
		}

		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				logger.WithFields(logrus.Fields{"op": name, "attempt": attempt + 1}).Debug("Operation succeeded after retry")
			}
			return result, nil
		}
		lastErr = err

		if IsPermanent(err) {
			return zero, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		delay := r.Backoff(attempt)
		logger.WithFields(logrus.Fields{
			"op": name, "attempt": attempt + 1, "max_attempts": maxAttempts, "delay": delay, "error": err,
		}).Warn("Operation failed, retrying")
		if r.OnRetry != nil {
			r.OnRetry(attempt, delay, err)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return zero, fmt.Errorf("%s: context done (%v) during backoff after error: %w", name, sleepErr, lastErr)
		}
	}

	return zero, fmt.Errorf("%w: %s after %d attempts: %w", utils.ErrRetryFailed, name, maxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
