package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestRateLimiter() *RateLimiter {
	log := logrus.NewEntry(logrus.New())
	log.Logger.SetLevel(logrus.DebugLevel)
	return NewRateLimiter(100*time.Millisecond, log)
}

func TestApplyDelay_RespectsContextCancellation(t *testing.T) {
	rl := newTestRateLimiter()
	host := "www.worldofbooks.com"

	rl.UpdateLastRequestTime(host)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := rl.ApplyDelay(ctx, host, 5*time.Second)
	elapsed := time.Since(start)

	if err == nil {
		t.Error("ApplyDelay with cancelled context returned nil error")
	}
	if elapsed > 100*time.Millisecond {
		t.Errorf("ApplyDelay with cancelled context took %v, expected <100ms", elapsed)
	}
}

func TestApplyDelay_SleepsForExpectedDuration(t *testing.T) {
	rl := newTestRateLimiter()
	host := "www.worldofbooks.com"

	rl.UpdateLastRequestTime(host)

	start := time.Now()
	if err := rl.ApplyDelay(context.Background(), host, 100*time.Millisecond); err != nil {
		t.Fatalf("ApplyDelay returned error: %v", err)
	}
	elapsed := time.Since(start)

	// No jitter: never shorter than the configured gap
	if elapsed < 90*time.Millisecond {
		t.Errorf("ApplyDelay returned too quickly: %v, expected ~100ms", elapsed)
	}
	if elapsed > 300*time.Millisecond {
		t.Errorf("ApplyDelay took too long: %v, expected ~100ms", elapsed)
	}
}

func TestApplyDelay_NoDelayOnFirstRequest(t *testing.T) {
	rl := newTestRateLimiter()

	start := time.Now()
	if err := rl.ApplyDelay(context.Background(), "fresh-host.com", 5*time.Second); err != nil {
		t.Fatalf("ApplyDelay returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("ApplyDelay on first request took %v, expected instant return", elapsed)
	}
}

func TestWait_UsesInjectedClock(t *testing.T) {
	rl := newTestRateLimiter()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base
	rl.now = func() time.Time { return now }

	rl.UpdateLastRequestTime("h")

	tests := []struct {
		name    string
		advance time.Duration
		delay   time.Duration
		want    time.Duration
	}{
		{"just navigated", 0, 2 * time.Second, 2 * time.Second},
		{"half way", time.Second, 2 * time.Second, time.Second},
		{"gap elapsed", 3 * time.Second, 2 * time.Second, 0},
		{"default delay when unset", 40 * time.Millisecond, 0, 60 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = base.Add(tt.advance)
			if got := rl.Wait("h", tt.delay); got != tt.want {
				t.Errorf("Wait() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWritePacer_SpacesWrites(t *testing.T) {
	p := NewWritePacer(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
	}
	// First write is immediate, the next two wait one interval each
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("three paced writes took %v, expected >= ~100ms", elapsed)
	}
}

func TestWritePacer_DisabledAndNil(t *testing.T) {
	ctx := context.Background()
	p := NewWritePacer(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("disabled pacer took %v", elapsed)
	}

	var nilPacer *WritePacer
	if err := nilPacer.Wait(ctx); err != nil {
		t.Errorf("nil pacer Wait returned %v", err)
	}
}
