// Package scrape holds one scraper per job type. Each scraper visits its
// pages strictly one at a time, extracts records with the pkg/extract
// helpers and reconciles them into storage in page order.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/fetch"
	"github.com/Sriram-PR/catalog-scraper/pkg/log"
	"github.com/Sriram-PR/catalog-scraper/pkg/metrics"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/storage"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// Entity labels used in logs and metrics
const (
	entityNavigation = "navigation"
	entityCategory   = "category"
	entityProduct    = "product"
	entityDetail     = "detail"
	entityReview     = "review"
)

// Outcome counts the records a job extracted (Found) and the records that
// were written to storage (Reconciled).
type Outcome struct {
	Found      int
	Reconciled int
}

// Scraper executes one job type
type Scraper interface {
	Scrape(ctx context.Context, job *models.ScrapeJob) (Outcome, error)
}

// Registry maps job types to their scrapers
type Registry map[models.JobType]Scraper

// Lookup returns the scraper for t, or ErrUnknownJobType
func (r Registry) Lookup(t models.JobType) (Scraper, error) {
	s, ok := r[t]
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: no scraper registered for %s", utils.ErrUnknownJobType, t)
	}
	return s, nil
}

// NewRegistry wires the four entity scrapers onto base
func NewRegistry(base *Base) Registry {
	return Registry{
		models.JobTypeNavigation:    NewNavigationScraper(base),
		models.JobTypeCategory:      NewCategoryScraper(base),
		models.JobTypeProduct:       NewProductScraper(base),
		models.JobTypeProductDetail: NewDetailScraper(base),
	}
}

// Deps are the collaborators shared by all scrapers. Retrier, Limiter,
// Pacer and Now are built from Config when nil.
type Deps struct {
	Config  config.ScraperConfig
	Source  fetch.PageSource
	Store   storage.Store
	Metrics *metrics.Metrics
	Logger  *logrus.Entry
	Retrier *fetch.Retrier
	Limiter *fetch.RateLimiter
	Pacer   *fetch.WritePacer
	Now     func() time.Time
}

// Base carries the page, politeness and storage plumbing common to every
// scraper.
type Base struct {
	cfg       config.ScraperConfig
	source    fetch.PageSource
	store     storage.Store
	retrier   *fetch.Retrier
	limiter   *fetch.RateLimiter
	pacer     *fetch.WritePacer
	metrics   *metrics.Metrics
	reconcile *Reconciler
	log       *logrus.Entry
}

// NewBase builds a Base from d
func NewBase(d Deps) *Base {
	logger := log.EntryOrDiscard(d.Logger)

	retrier := d.Retrier
	if retrier == nil {
		retrier = fetch.NewRetrier(d.Config, logger)
	}
	if retrier.OnRetry == nil && d.Metrics != nil {
		m := d.Metrics
		retrier.OnRetry = func(int, time.Duration, error) { m.IncRetries() }
	}
	limiter := d.Limiter
	if limiter == nil {
		limiter = fetch.NewRateLimiter(d.Config.RateLimit, logger.WithField("component", "rate_limiter"))
	}
	pacer := d.Pacer
	if pacer == nil {
		pacer = fetch.NewWritePacer(d.Config.WriteDelay)
	}

	return &Base{
		cfg:       d.Config,
		source:    d.Source,
		store:     d.Store,
		retrier:   retrier,
		limiter:   limiter,
		pacer:     pacer,
		metrics:   d.Metrics,
		reconcile: NewReconciler(d.Store, d.Now),
		log:       logger,
	}
}

// visit loads pageURL. Every attempt first waits out the politeness delay
// for the host, and transient failures are retried with backoff.
func (b *Base) visit(ctx context.Context, pageURL string, settle time.Duration, logger *logrus.Entry) (*fetch.Page, error) {
	host := fetch.HostOf(pageURL)
	page, err := fetch.WithRetry(ctx, b.retrier, "load "+pageURL, func(ctx context.Context) (*fetch.Page, error) {
		if err := b.limiter.ApplyDelay(ctx, host, b.cfg.RateLimit); err != nil {
			return nil, err
		}
		start := time.Now()
		p, err := b.source.Load(ctx, fetch.Request{URL: pageURL, Settle: settle})
		b.limiter.UpdateLastRequestTime(host)
		b.metrics.ObservePageLoad(time.Since(start), err)
		return p, err
	})
	if err != nil {
		if errors.Is(err, utils.ErrRetryFailed) {
			b.metrics.IncRetriesExhausted()
		}
		return nil, err
	}
	logger.WithFields(logrus.Fields{"url": page.URL, "status": page.StatusCode}).Debug("Page loaded")
	return page, nil
}

// paceWrite waits for the write pacer before a storage write
func (b *Base) paceWrite(ctx context.Context) error {
	return b.pacer.Wait(ctx)
}

// itemFailed logs and counts an item that was skipped
func (b *Base) itemFailed(logger *logrus.Entry, entity string, index int, err error) {
	b.metrics.IncItemFailure(entity)
	logger.WithFields(logrus.Fields{
		"entity":         entity,
		"item_index":     index,
		"error_category": utils.CategorizeError(err),
	}).Warnf("Skipping item: %v", err)
}

// safeExtract runs fn and converts a panic into an error, so one malformed
// element cannot abort a batch.
func safeExtract[T any](fn func() (T, bool)) (item T, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: extraction panicked: %v", utils.ErrParsing, r)
			ok = false
		}
	}()
	item, ok = fn()
	return item, ok, nil
}

// innermost reads every element of matches and keeps, in document order,
// the items of elements that do not wrap another matched element yielding
// an item. Class substring selectors match a grid or section as well as
// the cards inside it; only the cards are items.
func innermost[T any](matches *goquery.Selection, selector string, read func(i int, el *goquery.Selection) (T, bool)) []T {
	type result struct {
		item T
		ok   bool
	}
	results := make([]result, matches.Length())
	matches.Each(func(i int, el *goquery.Selection) {
		item, ok := read(i, el)
		results[i] = result{item: item, ok: ok}
	})

	var items []T
	matches.Each(func(i int, el *goquery.Selection) {
		if !results[i].ok {
			return
		}
		wraps := false
		el.Find(selector).EachWithBreak(func(_ int, inner *goquery.Selection) bool {
			if j := matches.IndexOfSelection(inner); j >= 0 && results[j].ok {
				wraps = true
			}
			return !wraps
		})
		if !wraps {
			items = append(items, results[i].item)
		}
	})
	return items
}

// jobParams asserts the params variant of job
func jobParams[T models.JobParams](job *models.ScrapeJob) (T, error) {
	p, ok := job.Params.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s job %s carries %T params", utils.ErrInvalidParams, job.Type, job.ID, job.Params)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// jobLogger contextualizes logger with the job id and type
func jobLogger(logger *logrus.Entry, job *models.ScrapeJob) *logrus.Entry {
	return logger.WithFields(logrus.Fields{"job_id": job.ID, "job_type": job.Type})
}
