package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Sriram-PR/catalog-scraper/pkg/log"
)

// RateLimiter spaces out navigations per host. The delay is fixed; there is
// no jitter so the minimum gap between two loads is predictable.
type RateLimiter struct {
	hostLastRequest   map[string]time.Time // hostname -> last navigation time
	hostLastRequestMu sync.Mutex
	defaultDelay      time.Duration
	now               func() time.Time
	log               *logrus.Entry
}

// NewRateLimiter creates a RateLimiter
func NewRateLimiter(defaultDelay time.Duration, logger *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		hostLastRequest: make(map[string]time.Time),
		defaultDelay:    defaultDelay,
		now:             time.Now,
		log:             log.EntryOrDiscard(logger),
	}
}

// Wait computes how long a caller must wait before the next navigation to host
func (rl *RateLimiter) Wait(host string, minDelay time.Duration) time.Duration {
	if minDelay <= 0 {
		minDelay = rl.defaultDelay
	}
	if minDelay <= 0 {
		return 0
	}

	rl.hostLastRequestMu.Lock()
	last, exists := rl.hostLastRequest[host]
	rl.hostLastRequestMu.Unlock()
	if !exists {
		return 0
	}

	elapsed := rl.now().Sub(last)
	if elapsed >= minDelay {
		return 0
	}
	return minDelay - elapsed
}

// ApplyDelay blocks until minDelay has passed since the last recorded
// navigation to host, or until ctx is done.
func (rl *RateLimiter) ApplyDelay(ctx context.Context, host string, minDelay time.Duration) error {
	wait := rl.Wait(host, minDelay)
	if wait <= 0 {
		return ctx.Err()
	}
	rl.log.WithFields(logrus.Fields{"host": host, "sleep": wait}).Debug("Rate limit applying sleep")
	return sleepContext(ctx, wait)
}

// UpdateLastRequestTime records now as the last navigation to host. Call it
// after the navigation attempt, successful or not.
func (rl *RateLimiter) UpdateLastRequestTime(host string) {
	rl.hostLastRequestMu.Lock()
	rl.hostLastRequest[host] = rl.now()
	rl.hostLastRequestMu.Unlock()
}

// WritePacer enforces a minimum gap between storage writes in a job
type WritePacer struct {
	limiter *rate.Limiter
}

// NewWritePacer returns a pacer allowing one write per interval. A
// non-positive interval disables pacing.
func NewWritePacer(interval time.Duration) *WritePacer {
	if interval <= 0 {
		return &WritePacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &WritePacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next write is allowed
func (p *WritePacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
