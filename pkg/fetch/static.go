package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/log"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// HTTPSource loads pages with plain HTTP through colly. It does not execute
// JavaScript, so it only sees server rendered markup.
type HTTPSource struct {
	collector *colly.Collector
	log       *logrus.Entry
}

// NewHTTPSource builds a colly backed source using client for transport
func NewHTTPSource(userAgent string, timeout time.Duration, client *http.Client, logger *logrus.Entry) *HTTPSource {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	if client != nil {
		c.SetClient(client)
	}
	if timeout > 0 {
		c.SetRequestTimeout(timeout)
	}
	return &HTTPSource{
		collector: c,
		log:       log.EntryOrDiscard(logger).WithField("component", "http_source"),
	}
}

// Load fetches req.URL. Each call runs on a clone of the base collector so
// concurrent loads never share callbacks.
func (s *HTTPSource) Load(ctx context.Context, req Request) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := s.collector.Clone()
	var body []byte
	var status int
	var visitErr error
	finalURL := req.URL
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		status = r.StatusCode
		if r.Request != nil && r.Request.URL != nil {
			finalURL = r.Request.URL.String()
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		visitErr = err
		if r != nil {
			status = r.StatusCode
		}
	})

	start := time.Now()
	err := c.Visit(req.URL)
	if err == nil {
		err = visitErr
	}
	s.log.WithFields(logrus.Fields{"url": req.URL, "status": status, "duration": time.Since(start)}).Debug("HTTP page load finished")

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if statusErr := statusError(req.URL, status); statusErr != nil {
		return nil, statusErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %w", utils.ErrNavigation, req.URL, err)
	}
	return ParsePage(finalURL, status, string(body))
}

// Close is a no-op; the HTTP client is owned by the caller
func (s *HTTPSource) Close() error { return nil }
