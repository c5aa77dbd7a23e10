package scrape

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/fetch"
	"github.com/Sriram-PR/catalog-scraper/pkg/metrics"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/storage"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

const siteURL = "https://www.example.test"

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// fakeSource serves HTML fixtures by URL. Unknown URLs are permanent 404s.
type fakeSource struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string]int // URL -> transient failures before success
	calls    []string
}

func newFakeSource(pages map[string]string) *fakeSource {
	return &fakeSource{pages: pages, failures: make(map[string]int)}
}

func (f *fakeSource) Load(_ context.Context, req fetch.Request) (*fetch.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.URL)

	if n := f.failures[req.URL]; n > 0 {
		f.failures[req.URL] = n - 1
		return nil, fmt.Errorf("%w: connection reset loading %s", utils.ErrNavigation, req.URL)
	}
	html, ok := f.pages[req.URL]
	if !ok {
		return nil, fetch.Permanent(fmt.Errorf("%w: %s returned status 404", utils.ErrNavigation, req.URL))
	}
	return fetch.ParsePage(req.URL, 200, html)
}

func (f *fakeSource) Close() error { return nil }

func (f *fakeSource) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testConfig() config.ScraperConfig {
	cfg := config.Defaults().Scraper
	cfg.BaseURL = siteURL
	cfg.RateLimit = 0
	cfg.WriteDelay = 0
	cfg.MaxRetries = 3
	cfg.Settle = config.SettleDelays{}
	return cfg
}

type harness struct {
	store   *storage.BadgerStore
	source  *fakeSource
	metrics *metrics.Metrics
	base    *Base
}

func newHarness(t *testing.T, pages map[string]string) *harness {
	t.Helper()
	return newHarnessWithConfig(t, testConfig(), pages)
}

func newHarnessWithConfig(t *testing.T, cfg config.ScraperConfig, pages map[string]string) *harness {
	t.Helper()
	store, err := storage.NewInMemoryBadgerStore(testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	source := newFakeSource(pages)
	m := metrics.New()
	retrier := fetch.NewRetrier(cfg, testLogger())
	retrier.Sleep = func(context.Context, time.Duration) error { return nil }

	base := NewBase(Deps{
		Config:  cfg,
		Source:  source,
		Store:   store,
		Metrics: m,
		Logger:  testLogger(),
		Retrier: retrier,
		Now:     func() time.Time { return testNow },
	})
	return &harness{store: store, source: source, metrics: m, base: base}
}

func runningJob(t *testing.T, jobType models.JobType, url string, params models.JobParams) *models.ScrapeJob {
	t.Helper()
	job := models.NewScrapeJob("job-"+string(jobType), jobType, url, params, testNow)
	require.NoError(t, job.Start(testNow))
	return job
}

func (h *harness) seedNavigation(t *testing.T, id, url string) *models.Navigation {
	t.Helper()
	nav := &models.Navigation{ID: id, Name: id, URL: url, IsActive: true, CreatedAt: testNow, UpdatedAt: testNow}
	require.NoError(t, h.store.SaveNavigation(context.Background(), nav))
	return nav
}

func (h *harness) seedCategory(t *testing.T, id, slug, url string, navID *string) *models.Category {
	t.Helper()
	cat := &models.Category{ID: id, Name: slug, Slug: slug, URL: url, NavigationID: navID, CreatedAt: testNow, UpdatedAt: testNow}
	require.NoError(t, h.store.SaveCategory(context.Background(), cat))
	return cat
}

func (h *harness) seedProduct(t *testing.T, id, sku, url, categoryID string) *models.Product {
	t.Helper()
	p := &models.Product{ID: id, SKU: sku, Title: sku, URL: url, Condition: "Used", InStock: true, CategoryID: categoryID, CreatedAt: testNow, UpdatedAt: testNow}
	require.NoError(t, h.store.SaveProduct(context.Background(), p))
	return p
}

func strPtr(s string) *string { return &s }
