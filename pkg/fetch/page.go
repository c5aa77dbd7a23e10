package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// Request describes one page load
type Request struct {
	URL string
	// Settle is an extra wait after the network goes idle, giving client
	// side rendering time to finish. Sources without a JS runtime ignore it.
	Settle time.Duration
}

// Page is a loaded, parsed document
type Page struct {
	URL        string // final URL after redirects
	StatusCode int
	HTML       string
	Doc        *goquery.Document
}

// PageSource loads pages. Implementations must be safe for concurrent use.
type PageSource interface {
	Load(ctx context.Context, req Request) (*Page, error)
	Close() error
}

// ParsePage builds a Page from raw HTML
func ParsePage(pageURL string, status int, html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing HTML of %s: %w", utils.ErrParsing, pageURL, err)
	}
	if u, err := url.Parse(pageURL); err == nil {
		doc.Url = u
	}
	return &Page{URL: pageURL, StatusCode: status, HTML: html, Doc: doc}, nil
}

// statusError converts a non-success HTTP status into a navigation error.
// 404 and 410 are permanent: retrying will not make the page appear.
func statusError(pageURL string, status int) error {
	if status == 0 || (status >= 200 && status < 300) {
		return nil
	}
	err := fmt.Errorf("%w: %s returned status %d", utils.ErrNavigation, pageURL, status)
	if status == http.StatusNotFound || status == http.StatusGone {
		return Permanent(err)
	}
	return err
}

// HostOf returns the host part of rawURL, or rawURL itself when unparsable
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// OpenSource returns the PageSource selected by cfg.Scraper.Driver
func OpenSource(cfg *config.AppConfig, logger *logrus.Entry) (PageSource, error) {
	switch cfg.Scraper.Driver {
	case config.DriverChrome, "":
		return NewChromeSource(cfg.Scraper, logger)
	case config.DriverHTTP:
		client := NewHTTPClient(cfg.HTTPClientSettings, logger)
		return NewHTTPSource(cfg.Scraper.UserAgent, cfg.Scraper.NavigationTimeout, client, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown page driver %q", utils.ErrConfigValidation, cfg.Scraper.Driver)
	}
}
