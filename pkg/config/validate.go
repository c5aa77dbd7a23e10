package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	w, err := c.Scraper.validate()
	warnings = append(warnings, w...)
	if err != nil {
		return warnings, err
	}

	switch c.Storage.Driver {
	case StorageBadger:
		if c.Storage.Dir == "" {
			warnings = append(warnings, "storage dir is empty, defaulting to './scraper_state'")
			c.Storage.Dir = "./scraper_state"
		}
	case StoragePostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return warnings, fmt.Errorf("%w: postgres storage needs DATABASE_HOST and DATABASE_NAME", utils.ErrConfigValidation)
		}
	default:
		return warnings, fmt.Errorf("%w: unknown storage driver %q (want %q or %q)",
			utils.ErrConfigValidation, c.Storage.Driver, StorageBadger, StoragePostgres)
	}

	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		warnings = append(warnings, fmt.Sprintf("database port %d is invalid, defaulting to 5432", c.Database.Port))
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxConns <= 0 {
		warnings = append(warnings, "database max_conns should be > 0, defaulting to 4")
		c.Database.MaxConns = 4
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	switch c.Log.Format {
	case "text", "json", "color":
	case "":
		c.Log.Format = "text"
	default:
		warnings = append(warnings, fmt.Sprintf("log format %q is unknown, defaulting to 'text'", c.Log.Format))
		c.Log.Format = "text"
	}

	switch c.Server.MCPTransport {
	case TransportStdio, TransportSSE:
	default:
		warnings = append(warnings, fmt.Sprintf("mcp transport %q is unknown, defaulting to 'stdio'", c.Server.MCPTransport))
		c.Server.MCPTransport = TransportStdio
	}
	if c.Server.JobQueueSize <= 0 {
		warnings = append(warnings, "job_queue_size should be > 0, defaulting to 16")
		c.Server.JobQueueSize = 16
	}
	if c.Server.JobCacheSize <= 0 {
		warnings = append(warnings, "job_cache_size should be > 0, defaulting to 256")
		c.Server.JobCacheSize = 256
	}

	c.validateHTTPClientSettings()

	return warnings, nil
}

func (s *ScraperConfig) validate() (warnings []string, err error) {
	// BaseURL
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	u, parseErr := url.Parse(s.BaseURL)
	if parseErr != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q must be an absolute http(s) URL", utils.ErrConfigValidation, s.BaseURL)
	}

	// Driver
	switch s.Driver {
	case DriverChrome, DriverHTTP:
	default:
		return nil, fmt.Errorf("%w: unknown scraper driver %q (want %q or %q)",
			utils.ErrConfigValidation, s.Driver, DriverChrome, DriverHTTP)
	}

	// RateLimit
	if s.RateLimit < 0 {
		warnings = append(warnings, "rate limit cannot be negative, setting to 0")
		s.RateLimit = 0
	}
	if s.RateLimit == 0 {
		warnings = append(warnings, "rate limit is 0, requests to the source site will not be paced")
	}
	if s.WriteDelay < 0 {
		warnings = append(warnings, "write delay cannot be negative, setting to 0")
		s.WriteDelay = 0
	}

	// MaxRetries counts attempts; at least one is always made
	if s.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		s.MaxRetries = 0
	}
	if s.InitialRetryDelay <= 0 {
		s.InitialRetryDelay = 1 * time.Second
	}
	if s.MaxRetryDelay <= 0 {
		s.MaxRetryDelay = 10 * time.Second
	}
	if s.InitialRetryDelay > s.MaxRetryDelay {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			s.InitialRetryDelay, s.MaxRetryDelay))
		s.InitialRetryDelay = s.MaxRetryDelay
	}

	if s.UserAgent == "" {
		warnings = append(warnings, "user agent is empty, using the default browser user agent")
		s.UserAgent = Defaults().Scraper.UserAgent
	}

	if s.NavigationTimeout <= 0 {
		warnings = append(warnings, "navigation timeout should be > 0, defaulting to 30s")
		s.NavigationTimeout = 30 * time.Second
	}

	if s.DefaultMaxPages < 1 {
		warnings = append(warnings, fmt.Sprintf("default max pages %d is < 1, defaulting to 5", s.DefaultMaxPages))
		s.DefaultMaxPages = 5
	}

	switch s.DescriptionFormat {
	case DescriptionText, DescriptionMarkdown:
	case "":
		s.DescriptionFormat = DescriptionText
	default:
		warnings = append(warnings, fmt.Sprintf("description format %q is unknown, defaulting to 'text'", s.DescriptionFormat))
		s.DescriptionFormat = DescriptionText
	}

	for _, d := range []*time.Duration{&s.Settle.Navigation, &s.Settle.Category, &s.Settle.Product, &s.Settle.Detail} {
		if *d < 0 {
			*d = 0
		}
	}

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 10
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
