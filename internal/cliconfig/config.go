package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
)

// DefaultBaseURL is the remote API used when none is configured.
const DefaultBaseURL = "http://localhost:8080"

// Lease backends.
const (
	LeaseSQLite = "sqlite"
	LeaseRedis  = "redis"
	LeaseNone   = "none"
)

// Config holds CLI configuration for offlinesync.
type Config struct {
	DBPath    string
	BaseURL   string
	TokenFile string

	ProbeURL      string
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	HTTPTimeout   time.Duration

	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	LeaseTTL       time.Duration
	OnlineDebounce time.Duration
	SyncInterval   time.Duration
	SkewTolerance  time.Duration

	Lease    string
	RedisURL string

	LogLevel  string
	LogFormat string

	MetricsAddr     string
	TraceExporter   string
	OTLPEndpoint    string
	TraceSampleRate float64

	WatchToken bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		ProbeInterval:   30 * time.Second,
		ProbeTimeout:    5 * time.Second,
		HTTPTimeout:     15 * time.Second,
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		LeaseTTL:        30 * time.Second,
		OnlineDebounce:  2 * time.Second,
		SkewTolerance:   60 * time.Second,
		Lease:           LeaseSQLite,
		LogLevel:        "info",
		LogFormat:       "console",
		TraceExporter:   "none",
		TraceSampleRate: 1.0,
		WatchToken:      true,
	}
}

// Home returns the offlinesync state directory.
func Home() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".offlinesync")
	}
	return ".offlinesync"
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(Home(), "offlinesync.db")
	}
	if c.TokenFile == "" {
		c.TokenFile = filepath.Join(Home(), "token.json")
	}

	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.ProbeURL == "" {
		c.ProbeURL = c.BaseURL
	}

	if c.MaxRetries <= 0 {
		return invalid("max-retries must be positive")
	}
	if c.BaseDelay <= 0 {
		return invalid("base-delay must be positive")
	}
	if c.MaxDelay < c.BaseDelay {
		return invalid("max-delay must not be below base-delay")
	}
	if c.ProbeInterval <= 0 || c.ProbeTimeout <= 0 {
		return invalid("probe interval and timeout must be positive")
	}
	if c.SyncInterval < 0 {
		return invalid("sync-interval must not be negative")
	}

	switch c.Lease {
	case "":
		c.Lease = LeaseSQLite
	case LeaseSQLite, LeaseNone:
	case LeaseRedis:
		if c.RedisURL == "" {
			return invalid("redis-url is required when lease is redis")
		}
	default:
		return invalid(fmt.Sprintf("unknown lease backend %q", c.Lease))
	}

	switch c.LogFormat {
	case "", "console", "json":
	default:
		return invalid(fmt.Sprintf("unknown log format %q", c.LogFormat))
	}

	switch c.TraceExporter {
	case "", "none", "stdout", "otlp":
	default:
		return invalid(fmt.Sprintf("unknown trace exporter %q", c.TraceExporter))
	}

	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, msg)
}
