package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// Driver and format names accepted in configuration
const (
	DriverChrome = "chrome"
	DriverHTTP   = "http"

	StorageBadger   = "badger"
	StoragePostgres = "postgres"

	DescriptionText     = "text"
	DescriptionMarkdown = "markdown"

	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// AppConfig holds the whole application configuration
type AppConfig struct {
	Scraper            ScraperConfig    `yaml:"scraper"`
	Storage            StorageConfig    `yaml:"storage"`
	Database           DatabaseConfig   `yaml:"database"`
	Log                LogConfig        `yaml:"log"`
	Server             ServerConfig     `yaml:"server"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// ScraperConfig controls the page source and politeness behaviour
type ScraperConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Headless          bool          `yaml:"headless"`
	RateLimit         time.Duration `yaml:"rate_limit"`  // Minimum gap between navigations to the site
	WriteDelay        time.Duration `yaml:"write_delay"` // Minimum gap between storage writes within a job
	MaxRetries        int           `yaml:"max_retries"`
	InitialRetryDelay time.Duration `yaml:"initial_retry_delay"`
	MaxRetryDelay     time.Duration `yaml:"max_retry_delay"`
	UserAgent         string        `yaml:"user_agent"`
	Driver            string        `yaml:"driver"` // "chrome" or "http"
	ChromePath        string        `yaml:"chrome_path,omitempty"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	DefaultMaxPages   int           `yaml:"default_max_pages"`
	DescriptionFormat string        `yaml:"description_format"` // "text" or "markdown"
	Settle            SettleDelays  `yaml:"settle"`
}

// SettleDelays are waits applied after a page reports network idle
type SettleDelays struct {
	Navigation time.Duration `yaml:"navigation"`
	Category   time.Duration `yaml:"category"`
	Product    time.Duration `yaml:"product"`
	Detail     time.Duration `yaml:"detail"`
}

// StorageConfig selects the storage backend
type StorageConfig struct {
	Driver string `yaml:"driver"` // "badger" or "postgres"
	Dir    string `yaml:"dir"`    // Badger data directory
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password,omitempty"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

// LogConfig controls the logrus setup
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text", "json" or "color"
}

// ServerConfig holds settings for the serve command
type ServerConfig struct {
	MCPTransport string `yaml:"mcp_transport"` // "stdio" or "sse"
	MCPAddr      string `yaml:"mcp_addr"`
	MetricsAddr  string `yaml:"metrics_addr"`
	JobQueueSize int    `yaml:"job_queue_size"`
	JobCacheSize int    `yaml:"job_cache_size"`
}

// HTTPClientConfig holds settings for the HTTP page source client
type HTTPClientConfig struct {
	Timeout             time.Duration `yaml:"timeout,omitempty"`
	MaxIdleConns        int           `yaml:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host,omitempty"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	DialerTimeout       time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive     time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// Defaults returns the configuration used when no environment is set
func Defaults() *AppConfig {
	return &AppConfig{
		Scraper: ScraperConfig{
			BaseURL:           "https://www.worldofbooks.com",
			Headless:          true,
			RateLimit:         2000 * time.Millisecond,
			WriteDelay:        100 * time.Millisecond,
			MaxRetries:        3,
			InitialRetryDelay: 1 * time.Second,
			MaxRetryDelay:     10 * time.Second,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			Driver:            DriverChrome,
			NavigationTimeout: 30 * time.Second,
			DefaultMaxPages:   5,
			DescriptionFormat: DescriptionText,
			Settle: SettleDelays{
				Navigation: 1000 * time.Millisecond,
				Category:   1500 * time.Millisecond,
				Product:    2000 * time.Millisecond,
				Detail:     2000 * time.Millisecond,
			},
		},
		Storage: StorageConfig{
			Driver: StorageBadger,
			Dir:    "./scraper_state",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Name:     "worldofbooks_scraper",
			SSLMode:  "disable",
			MaxConns: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			MCPTransport: TransportStdio,
			MCPAddr:      ":8090",
			MetricsAddr:  ":9090",
			JobQueueSize: 16,
			JobCacheSize: 256,
		},
	}
}

// LookupFunc matches os.LookupEnv
type LookupFunc func(key string) (string, bool)

// LoadEnvFiles loads .env style files into the process environment.
// Missing files are skipped; the names of files that were loaded are returned.
func LoadEnvFiles(paths ...string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var loaded []string
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("%w: loading %s: %w", utils.ErrConfigValidation, p, err)
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

// Load reads the configuration from the process environment.
func Load() (*AppConfig, error) {
	return FromEnv(os.LookupEnv)
}

// FromEnv overlays environment values onto Defaults. Malformed numeric,
// boolean or duration values are errors; semantic checks live in Validate.
func FromEnv(lookup LookupFunc) (*AppConfig, error) {
	cfg := Defaults()
	r := envReader{lookup: lookup}

	s := &cfg.Scraper
	r.str("SCRAPER_BASE_URL", &s.BaseURL)
	r.boolean("SCRAPER_HEADLESS", &s.Headless)
	r.millis("SCRAPER_RATE_LIMIT_MS", &s.RateLimit)
	r.millis("SCRAPER_WRITE_DELAY_MS", &s.WriteDelay)
	r.integer("SCRAPER_MAX_RETRIES", &s.MaxRetries)
	r.duration("SCRAPER_INITIAL_RETRY_DELAY", &s.InitialRetryDelay)
	r.duration("SCRAPER_MAX_RETRY_DELAY", &s.MaxRetryDelay)
	r.str("SCRAPER_USER_AGENT", &s.UserAgent)
	r.str("SCRAPER_DRIVER", &s.Driver)
	r.str("SCRAPER_CHROME_PATH", &s.ChromePath)
	r.duration("SCRAPER_NAVIGATION_TIMEOUT", &s.NavigationTimeout)
	r.integer("SCRAPER_DEFAULT_MAX_PAGES", &s.DefaultMaxPages)
	r.str("SCRAPER_DESCRIPTION_FORMAT", &s.DescriptionFormat)
	r.millis("SCRAPER_SETTLE_NAVIGATION_MS", &s.Settle.Navigation)
	r.millis("SCRAPER_SETTLE_CATEGORY_MS", &s.Settle.Category)
	r.millis("SCRAPER_SETTLE_PRODUCT_MS", &s.Settle.Product)
	r.millis("SCRAPER_SETTLE_DETAIL_MS", &s.Settle.Detail)

	r.str("STORAGE_DRIVER", &cfg.Storage.Driver)
	r.str("STORAGE_DIR", &cfg.Storage.Dir)

	d := &cfg.Database
	r.str("DATABASE_HOST", &d.Host)
	r.integer("DATABASE_PORT", &d.Port)
	r.str("DATABASE_USER", &d.User)
	r.str("DATABASE_PASSWORD", &d.Password)
	r.str("DATABASE_NAME", &d.Name)
	r.str("DATABASE_SSLMODE", &d.SSLMode)
	r.integer("DATABASE_MAX_CONNS", &d.MaxConns)

	r.str("LOG_LEVEL", &cfg.Log.Level)
	r.str("LOG_FORMAT", &cfg.Log.Format)

	srv := &cfg.Server
	r.str("MCP_TRANSPORT", &srv.MCPTransport)
	r.str("MCP_ADDR", &srv.MCPAddr)
	r.str("METRICS_ADDR", &srv.MetricsAddr)
	r.integer("JOB_QUEUE_SIZE", &srv.JobQueueSize)
	r.integer("JOB_CACHE_SIZE", &srv.JobCacheSize)

	if len(r.errs) > 0 {
		return nil, fmt.Errorf("%w: %w", utils.ErrConfigValidation, errors.Join(r.errs...))
	}
	return cfg, nil
}

// DSN returns a key=value connection string for pgx/gorm
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL returns a postgres:// URL, the form golang-migrate expects
func (d DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

// YAML renders the configuration with secrets redacted
func (c *AppConfig) YAML() ([]byte, error) {
	redacted := *c
	if redacted.Database.Password != "" {
		redacted.Database.Password = "********"
	}
	return yaml.Marshal(&redacted)
}

// envReader collects parse errors so all bad variables are reported at once
type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (r *envReader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *envReader) integer(key string, dst *int) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s=%q is not an integer", key, v))
		return
	}
	*dst = n
}

func (r *envReader) millis(key string, dst *time.Duration) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s=%q is not a millisecond count", key, v))
		return
	}
	*dst = time.Duration(n) * time.Millisecond
}

func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s=%q is not a duration", key, v))
		return
	}
	*dst = d
}

// boolean accepts true/false, 1/0, yes/no and on/off
func (r *envReader) boolean(key string, dst *bool) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	switch strings.ToLower(v) {
	case "false", "0", "no", "off":
		*dst = false
	case "true", "1", "yes", "on":
		*dst = true
	default:
		r.errs = append(r.errs, fmt.Errorf("%s=%q is not a boolean", key, v))
	}
}
