package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/catalog-scraper/pkg/log"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// TargetKey identifies a scrape target: two jobs with the same type and URL
// must never run at the same time.
func TargetKey(jobType, url string) string {
	return jobType + "|" + url
}

type lockEntry struct {
	sem         *semaphore.Weighted
	activeCount int64     // held + waiting
	lastRelease time.Time // zero if never released
}

// TargetLocks serializes jobs per target key. Entries are created lazily and
// removed by RunEviction once idle.
type TargetLocks struct {
	entries map[string]*lockEntry
	mu      sync.Mutex
	log     *logrus.Entry
}

// NewTargetLocks creates an empty lock set
func NewTargetLocks(logger *logrus.Entry) *TargetLocks {
	return &TargetLocks{
		entries: make(map[string]*lockEntry),
		log:     log.EntryOrDiscard(logger).WithField("component", "target_locks"),
	}
}

// Acquire blocks until key is free or ctx is done
func (l *TargetLocks) Acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	entry, exists := l.entries[key]
	if !exists {
		entry = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = entry
	}
	entry.activeCount++
	waiting := entry.activeCount > 1
	l.mu.Unlock()

	if waiting {
		l.log.WithField("target", key).Debug("Waiting for running job on same target")
	}
	if err := entry.sem.Acquire(ctx, 1); err != nil {
		l.mu.Lock()
		entry.activeCount--
		l.mu.Unlock()
		return fmt.Errorf("%w: target %s: %w", utils.ErrSemaphoreTimeout, key, err)
	}
	return nil
}

// TryAcquire takes key without blocking and reports whether it succeeded
func (l *TargetLocks) TryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, exists := l.entries[key]
	if !exists {
		entry = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = entry
	}
	if !entry.sem.TryAcquire(1) {
		return false
	}
	entry.activeCount++
	return true
}

// Release frees key
func (l *TargetLocks) Release(key string) {
	l.mu.Lock()
	entry, exists := l.entries[key]
	if !exists {
		l.mu.Unlock()
		l.log.Errorf("Release called for unknown target: %s", key)
		return
	}
	entry.activeCount--
	entry.lastRelease = time.Now()
	l.mu.Unlock()

	entry.sem.Release(1)
}

// RunEviction periodically drops idle entries. Run it in a goroutine.
func (l *TargetLocks) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle(interval)
		case <-ctx.Done():
			l.log.Debugf("Stopping target lock eviction: %v", ctx.Err())
			return
		}
	}
}

func (l *TargetLocks) evictIdle(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	evicted := 0
	for key, entry := range l.entries {
		if entry.activeCount == 0 && !entry.lastRelease.IsZero() && now.Sub(entry.lastRelease) >= maxIdle {
			delete(l.entries, key)
			evicted++
		}
	}
	if evicted > 0 {
		l.log.Debugf("Evicted %d idle target locks, %d remain", evicted, len(l.entries))
	}
}

// Len returns the number of tracked targets
func (l *TargetLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
