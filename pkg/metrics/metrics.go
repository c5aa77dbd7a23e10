// Package metrics holds the Prometheus collectors of the scraper. All
// methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page load results
const (
	LoadOK     = "ok"
	LoadFailed = "failed"
)

// Metrics bundles Prometheus collectors for jobs, page loads and items.
type Metrics struct {
	Registry           *prometheus.Registry
	JobsTotal          *prometheus.CounterVec
	PageLoadsTotal     *prometheus.CounterVec
	PageLoadDuration   prometheus.Histogram
	ItemsReconciled    *prometheus.CounterVec
	ItemFailures       *prometheus.CounterVec
	RetriesTotal       prometheus.Counter
	RetriesExhausted   prometheus.Counter
	JobDurationSeconds *prometheus.HistogramVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	jobs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_jobs_total",
			Help: "Scrape jobs that reached a terminal status.",
		},
		[]string{"type", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_job_duration_seconds",
			Help:    "Wall time from RUNNING to a terminal status.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)
	pageLoads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_page_loads_total",
			Help: "Page loads by result, counting each attempt.",
		},
		[]string{"result"},
	)
	pageDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_page_load_duration_seconds",
			Help:    "Latency of a single page load attempt.",
			Buckets: prometheus.DefBuckets,
		},
	)
	reconciled := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_reconciled_total",
			Help: "Extracted records written to storage, by entity.",
		},
		[]string{"entity"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_item_failures_total",
			Help: "Records skipped because extraction or reconciliation failed, by entity.",
		},
		[]string{"entity"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	exhausted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_exhausted_total",
			Help: "Operations that failed after their last attempt.",
		},
	)

	registry.MustRegister(jobs, jobDuration, pageLoads, pageDuration, reconciled, failures, retries, exhausted)

	return &Metrics{
		Registry:           registry,
		JobsTotal:          jobs,
		PageLoadsTotal:     pageLoads,
		PageLoadDuration:   pageDuration,
		ItemsReconciled:    reconciled,
		ItemFailures:       failures,
		RetriesTotal:       retries,
		RetriesExhausted:   exhausted,
		JobDurationSeconds: jobDuration,
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveJob records a terminal job and how long it ran.
func (m *Metrics) ObserveJob(jobType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(jobType, status).Inc()
	if d > 0 {
		m.JobDurationSeconds.WithLabelValues(jobType).Observe(d.Seconds())
	}
}

// ObservePageLoad records one load attempt.
func (m *Metrics) ObservePageLoad(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := LoadOK
	if err != nil {
		result = LoadFailed
	}
	m.PageLoadsTotal.WithLabelValues(result).Inc()
	m.PageLoadDuration.Observe(d.Seconds())
}

// IncReconciled counts a record written for entity.
func (m *Metrics) IncReconciled(entity string) {
	if m == nil {
		return
	}
	m.ItemsReconciled.WithLabelValues(entity).Inc()
}

// IncItemFailure counts a record skipped for entity.
func (m *Metrics) IncItemFailure(entity string) {
	if m == nil {
		return
	}
	m.ItemFailures.WithLabelValues(entity).Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncRetriesExhausted increments the exhausted retries counter.
func (m *Metrics) IncRetriesExhausted() {
	if m == nil {
		return
	}
	m.RetriesExhausted.Inc()
}
