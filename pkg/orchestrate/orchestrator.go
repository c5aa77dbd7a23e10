// Package orchestrate owns the scrape job lifecycle: creating jobs,
// executing them through the scraper registry and reporting their status.
package orchestrate

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/fetch"
	"github.com/Sriram-PR/catalog-scraper/pkg/log"
	"github.com/Sriram-PR/catalog-scraper/pkg/metrics"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/scrape"
	"github.com/Sriram-PR/catalog-scraper/pkg/storage"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// DefaultCacheSize is the number of terminal jobs memoized by GetJobStatus
const DefaultCacheSize = 256

// Options tune an Orchestrator. Zero values select the defaults.
type Options struct {
	CacheSize int
	Metrics   *metrics.Metrics
	Locks     *fetch.TargetLocks
	Now       func() time.Time
}

// Orchestrator creates and executes scrape jobs. Jobs on the same type and
// URL never run concurrently.
type Orchestrator struct {
	store    storage.JobStore
	registry scrape.Registry
	locks    *fetch.TargetLocks
	cache    *lru.Cache[string, *models.ScrapeJob]
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
	log      *logrus.Entry
}

// NewOrchestrator creates an Orchestrator dispatching to registry
func NewOrchestrator(store storage.JobStore, registry scrape.Registry, logger *logrus.Entry, opts Options) (*Orchestrator, error) {
	logger = log.EntryOrDiscard(logger).WithField("component", "orchestrator")

	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *models.ScrapeJob](size)
	if err != nil {
		return nil, fmt.Errorf("creating job cache: %w", err)
	}
	locks := opts.Locks
	if locks == nil {
		locks = fetch.NewTargetLocks(logger)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		store:    store,
		registry: registry,
		locks:    locks,
		cache:    cache,
		metrics:  opts.Metrics,
		now:      now,
		newID:    func() string { return uuid.New().String() },
		log:      logger,
	}, nil
}

// CreateJob stores a PENDING job. Params are checked for the known job
// types; a job of an unknown type is accepted and fails when executed.
func (o *Orchestrator) CreateJob(ctx context.Context, jobType models.JobType, url string, params models.JobParams) (*models.ScrapeJob, error) {
	if jobType == "" {
		return nil, fmt.Errorf("%w: job type is required", utils.ErrInvalidParams)
	}
	if jobType.IsValid() {
		checked, err := models.CheckParams(jobType, params)
		if err != nil {
			return nil, err
		}
		params = checked
	}

	job := models.NewScrapeJob(o.newID(), jobType, url, params, o.now().UTC())
	if err := o.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating %s job: %w", jobType, err)
	}
	o.log.WithFields(logrus.Fields{"job_id": job.ID, "job_type": jobType, "url": url}).Info("Job created")
	return job.Clone(), nil
}

// ExecuteJob runs job id to a terminal status and returns the terminal
// record. Scrape failures are recorded on the job, not returned; the error
// is non-nil only when the job cannot be loaded or persisted.
func (o *Orchestrator) ExecuteJob(ctx context.Context, id string) (*models.ScrapeJob, error) {
	job, err := o.store.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}
	if job.Status.IsTerminal() {
		o.cache.Add(job.ID, job.Clone())
		return job, nil
	}

	jobLog := o.log.WithFields(logrus.Fields{"job_id": job.ID, "job_type": job.Type})
	key := fetch.TargetKey(string(job.Type), job.URL)
	if err := o.locks.Acquire(ctx, key); err != nil {
		return o.finish(ctx, job, scrape.Outcome{}, err, jobLog)
	}
	defer o.locks.Release(key)

	// Another caller may have run the same job while we waited
	job, err = o.store.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reloading job %s: %w", id, err)
	}
	if job.Status.IsTerminal() {
		o.cache.Add(job.ID, job.Clone())
		return job, nil
	}

	if err := job.Start(o.now().UTC()); err != nil {
		return nil, err
	}
	if err := o.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("marking job %s running: %w", id, err)
	}
	jobLog.WithField("url", job.URL).Info("Job started")

	outcome, runErr := o.dispatch(ctx, job.Clone(), jobLog)
	return o.finish(ctx, job, outcome, runErr, jobLog)
}

// dispatch runs the scraper for job, converting a panic into ErrJobPanic
func (o *Orchestrator) dispatch(ctx context.Context, job *models.ScrapeJob, jobLog *logrus.Entry) (outcome scrape.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			jobLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"stage":       "PanicRecovery",
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered in scraper")
			outcome, err = scrape.Outcome{}, fmt.Errorf("%w: %v", utils.ErrJobPanic, r)
		}
	}()

	scraper, err := o.registry.Lookup(job.Type)
	if err != nil {
		return scrape.Outcome{}, err
	}
	return scraper.Scrape(ctx, job)
}

// finish moves job to COMPLETED or FAILED and persists it. The write uses a
// context detached from cancellation so a shutdown still records the result.
func (o *Orchestrator) finish(ctx context.Context, job *models.ScrapeJob, outcome scrape.Outcome, runErr error, jobLog *logrus.Entry) (*models.ScrapeJob, error) {
	now := o.now().UTC()
	if runErr == nil {
		if err := job.Complete(outcome.Found, outcome.Reconciled, now); err != nil {
			return nil, err
		}
	} else if err := job.Fail(runErr.Error(), now); err != nil {
		return nil, err
	}

	if err := o.store.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		return nil, fmt.Errorf("recording %s of job %s: %w", job.Status, job.ID, err)
	}

	var elapsed time.Duration
	if job.StartedAt != nil {
		elapsed = now.Sub(*job.StartedAt)
	}
	o.metrics.ObserveJob(string(job.Type), string(job.Status), elapsed)
	o.cache.Add(job.ID, job.Clone())

	fields := logrus.Fields{"status": job.Status, "items_total": job.ItemsTotal, "items_processed": job.ItemsProcessed, "duration": elapsed.String()}
	if runErr != nil {
		jobLog.WithFields(fields).WithField("error_category", utils.CategorizeError(runErr)).Errorf("Job failed: %v", runErr)
	} else {
		jobLog.WithFields(fields).Info("Job completed")
	}
	return job.Clone(), nil
}

// GetJobStatus returns the current record of job id
func (o *Orchestrator) GetJobStatus(ctx context.Context, id string) (*models.ScrapeJob, error) {
	if job, ok := o.cache.Get(id); ok {
		return job.Clone(), nil
	}
	job, err := o.store.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}
	if job.Status.IsTerminal() {
		o.cache.Add(job.ID, job.Clone())
	}
	return job, nil
}

// ListJobs returns jobs matching filter, newest first
func (o *Orchestrator) ListJobs(ctx context.Context, filter storage.JobFilter) ([]*models.ScrapeJob, error) {
	jobs, err := o.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return jobs, nil
}
