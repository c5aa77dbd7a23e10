package fetch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/log"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// ChromeSource renders pages in a shared headless Chrome. Every Load opens
// its own tab so concurrent jobs do not interfere.
type ChromeSource struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	timeout       time.Duration
	log           *logrus.Entry

	closeOnce sync.Once
}

// NewChromeSource starts the browser process
func NewChromeSource(cfg config.ScraperConfig, logger *logrus.Entry) (*ChromeSource, error) {
	logger = log.EntryOrDiscard(logger).WithField("component", "chrome_source")

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Debugf),
		chromedp.WithErrorf(logger.Errorf),
	)
	// First Run launches the browser
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: starting chrome: %w", utils.ErrNavigation, err)
	}

	timeout := cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger.WithField("headless", cfg.Headless).Info("Chrome page source started")
	return &ChromeSource{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		timeout:       timeout,
		log:           logger,
	}, nil
}

// Load navigates a fresh tab to req.URL, waits for network idle (bounded by
// the navigation timeout), waits req.Settle, then captures the DOM.
func (s *ChromeSource) Load(ctx context.Context, req Request) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	idle := make(chan struct{})
	var idleOnce sync.Once
	var navigated atomic.Bool
	var status atomic.Int64

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventLifecycleEvent:
			switch e.Name {
			case "init":
				navigated.Store(true)
			case "networkIdle":
				if navigated.Load() {
					idleOnce.Do(func() { close(idle) })
				}
			}
		case *network.EventResponseReceived:
			if e.Type == network.ResourceTypeDocument && e.Response != nil && status.Load() == 0 {
				status.Store(int64(e.Response.Status))
			}
		}
	})

	start := time.Now()
	navCtx, navCancel := context.WithTimeout(tabCtx, s.timeout)
	defer navCancel()

	err := chromedp.Run(navCtx,
		network.Enable(),
		page.SetLifecycleEventsEnabled(true),
		chromedp.Navigate(req.URL),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: navigating to %s: %w", utils.ErrNavigation, req.URL, err)
	}

	if statusErr := statusError(req.URL, int(status.Load())); statusErr != nil {
		return nil, statusErr
	}

	select {
	case <-idle:
	case <-navCtx.Done():
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// Long-polling pages never go idle; capture what rendered so far
		s.log.WithField("url", req.URL).Warn("Network idle not reached before timeout, capturing page anyway")
	}

	var html, finalURL string
	captureCtx, captureCancel := context.WithTimeout(tabCtx, s.timeout)
	defer captureCancel()
	err = chromedp.Run(captureCtx,
		chromedp.Sleep(req.Settle),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: capturing %s: %w", utils.ErrNavigation, req.URL, err)
	}
	if html == "" {
		return nil, fmt.Errorf("%w: empty document for %s", utils.ErrNavigation, req.URL)
	}

	s.log.WithFields(logrus.Fields{
		"url": req.URL, "status": status.Load(), "duration": time.Since(start),
	}).Debug("Chrome page load finished")
	if finalURL == "" {
		finalURL = req.URL
	}
	return ParsePage(finalURL, int(status.Load()), html)
}

// Close shuts the browser down
func (s *ChromeSource) Close() error {
	s.closeOnce.Do(func() {
		s.browserCancel()
		s.allocCancel()
	})
	return nil
}
