package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestAppConfig_Validate_DefaultsProduceNoWarnings(t *testing.T) {
	cfg := Defaults()
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)

	// HTTP client defaults applied
	assert.Equal(t, 45*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 2, cfg.HTTPClientSettings.MaxIdleConnsPerHost)
	assert.Equal(t, 15*time.Second, cfg.HTTPClientSettings.DialerTimeout)
}

func TestAppConfig_Validate_FixesInvalidValues(t *testing.T) {
	cfg := Defaults()
	cfg.Scraper.BaseURL = "https://www.worldofbooks.com/"
	cfg.Scraper.MaxRetries = -2
	cfg.Scraper.RateLimit = -time.Second
	cfg.Scraper.DefaultMaxPages = 0
	cfg.Scraper.InitialRetryDelay = 20 * time.Second
	cfg.Scraper.MaxRetryDelay = 10 * time.Second
	cfg.Scraper.DescriptionFormat = "html"
	cfg.Scraper.UserAgent = ""
	cfg.Log.Format = "xml"
	cfg.Server.JobQueueSize = 0
	cfg.Database.Port = 0

	warnings, err := cfg.Validate()
	require.NoError(t, err)

	assert.Equal(t, "https://www.worldofbooks.com", cfg.Scraper.BaseURL)
	assert.Equal(t, 0, cfg.Scraper.MaxRetries)
	assert.Equal(t, time.Duration(0), cfg.Scraper.RateLimit)
	assert.Equal(t, 5, cfg.Scraper.DefaultMaxPages)
	assert.Equal(t, 10*time.Second, cfg.Scraper.InitialRetryDelay)
	assert.Equal(t, DescriptionText, cfg.Scraper.DescriptionFormat)
	assert.NotEmpty(t, cfg.Scraper.UserAgent)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 16, cfg.Server.JobQueueSize)
	assert.Equal(t, 5432, cfg.Database.Port)

	assert.True(t, containsWarning(warnings, "max_retries cannot be negative"))
	assert.True(t, containsWarning(warnings, "rate limit cannot be negative"))
	assert.True(t, containsWarning(warnings, "rate limit is 0"))
	assert.True(t, containsWarning(warnings, "default max pages 0"))
	assert.True(t, containsWarning(warnings, "initial_retry_delay"))
	assert.True(t, containsWarning(warnings, "description format"))
	assert.True(t, containsWarning(warnings, "log format"))
	assert.True(t, containsWarning(warnings, "job_queue_size"))
}

func TestAppConfig_Validate_FatalErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		substr string
	}{
		{"relative base url", func(c *AppConfig) { c.Scraper.BaseURL = "/books" }, "base URL"},
		{"unknown driver", func(c *AppConfig) { c.Scraper.Driver = "firefox" }, "scraper driver"},
		{"unknown storage", func(c *AppConfig) { c.Storage.Driver = "sqlite" }, "storage driver"},
		{"postgres without host", func(c *AppConfig) {
			c.Storage.Driver = StoragePostgres
			c.Database.Host = ""
		}, "DATABASE_HOST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			_, err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrConfigValidation)
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}

func TestAppConfig_Validate_EmptyStorageDir(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Dir = ""
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, "./scraper_state", cfg.Storage.Dir)
	assert.True(t, containsWarning(warnings, "storage dir is empty"))
}
