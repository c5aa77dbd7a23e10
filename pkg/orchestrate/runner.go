package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/log"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// DefaultQueueSize is the Runner backlog when none is configured
const DefaultQueueSize = 16

// ErrRunnerClosed is returned by Submit after Close
var ErrRunnerClosed = errors.New("job runner is closed")

// Executor runs one job to completion
type Executor interface {
	ExecuteJob(ctx context.Context, id string) (*models.ScrapeJob, error)
}

// JobError reports a job that could not be executed or ended FAILED
type JobError struct {
	JobID string
	Err   error
}

func (e JobError) Error() string { return fmt.Sprintf("job %s: %v", e.JobID, e.Err) }
func (e JobError) Unwrap() error { return e.Err }

// Runner executes submitted jobs in the background, one at a time, in
// submission order.
type Runner struct {
	exec   Executor
	queue  chan string
	errs   chan JobError
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
	log    *logrus.Entry
}

// NewRunner starts the worker goroutine. Jobs run with ctx, which should be
// the process lifetime context.
func NewRunner(ctx context.Context, exec Executor, queueSize int, logger *logrus.Entry) *Runner {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	r := &Runner{
		exec:  exec,
		queue: make(chan string, queueSize),
		errs:  make(chan JobError, queueSize),
		done:  make(chan struct{}),
		log:   log.EntryOrDiscard(logger).WithField("component", "job_runner"),
	}
	go r.work(ctx)
	return r
}

// Submit queues job id without blocking. A full backlog is ErrQueueFull.
func (r *Runner) Submit(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRunnerClosed
	}
	select {
	case r.queue <- id:
		r.log.WithField("job_id", id).Debug("Job queued")
		return nil
	default:
		return fmt.Errorf("%w: cannot queue job %s (capacity %d)", utils.ErrQueueFull, id, cap(r.queue))
	}
}

// Errors reports dispatch failures and FAILED jobs. Reports are dropped
// when nobody drains the channel; every failure is logged regardless. The
// channel is closed once the worker stops.
func (r *Runner) Errors() <-chan JobError {
	return r.errs
}

// Close stops accepting jobs, runs the queued ones and waits for the
// worker to exit.
func (r *Runner) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Runner) work(ctx context.Context) {
	defer close(r.done)
	defer close(r.errs)

	for id := range r.queue {
		jobLog := r.log.WithField("job_id", id)
		job, err := r.exec.ExecuteJob(ctx, id)
		switch {
		case err != nil:
			jobLog.WithField("error_category", utils.CategorizeError(err)).Errorf("Job could not be executed: %v", err)
			r.report(JobError{JobID: id, Err: err})
		case job.Status == models.JobStatusFailed:
			jobLog.Warnf("Job finished FAILED: %s", job.ErrorMessage)
			r.report(JobError{JobID: id, Err: errors.New(job.ErrorMessage)})
		default:
			jobLog.WithField("status", job.Status).Debug("Job finished")
		}
	}
	r.log.Debug("Job runner stopped")
}

func (r *Runner) report(e JobError) {
	select {
	case r.errs <- e:
	default:
		r.log.WithField("job_id", e.JobID).Warn("Error channel full, dropping report")
	}
}
