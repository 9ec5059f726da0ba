package offlinesync

import (
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/offlinesync/internal/app"
	"github.com/bft-labs/offlinesync/internal/domain"
)

// Lease backends for cross-process drain exclusion.
const (
	LeaseSQLite = "sqlite"
	LeaseRedis  = "redis"
	LeaseNone   = "none"
)

// Config holds the configuration of a Service.
type Config struct {
	// DBPath is the SQLite database file. Required.
	DBPath string

	// BaseURL prefixes relative request paths. Required.
	BaseURL string

	// Token is a fixed bearer token. Ignored when TokenFile is set.
	Token string

	// TokenFile holds the session token, either as JSON
	// {"token": "...", "username": "..."} or as the bare token.
	TokenFile string

	// Endpoints overrides the record collection paths.
	Endpoints Endpoints

	HTTPTimeout time.Duration

	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// OnlineDebounce is how long connectivity must hold before a drain.
	OnlineDebounce time.Duration

	// SkewTolerance is the clock skew within which edits are merged.
	SkewTolerance time.Duration

	// Lease selects the drain lease backend. Default: sqlite.
	Lease    string
	LeaseTTL time.Duration
	RedisURL string

	// StartOffline makes the network monitor start offline.
	StartOffline bool
}

// DefaultConfig returns a Config with default values. DBPath and BaseURL
// still need to be set.
func DefaultConfig() Config {
	c := Config{}
	c.SetDefaults()
	return c
}

// SetDefaults fills zero fields with default values.
func (c *Config) SetDefaults() {
	q := app.DefaultQueueConfig()
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = q.MaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = q.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = q.MaxDelay
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = q.LeaseTTL
	}
	if c.OnlineDebounce == 0 {
		c.OnlineDebounce = app.DefaultOnlineDebounce
	}
	if c.SkewTolerance <= 0 {
		c.SkewTolerance = app.DefaultSkewTolerance
	}
	if c.Lease == "" {
		c.Lease = LeaseSQLite
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("%w: db path is required", domain.ErrInvalidConfig)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base url is required", domain.ErrInvalidConfig)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("%w: max delay below base delay", domain.ErrInvalidConfig)
	}
	switch c.Lease {
	case LeaseSQLite, LeaseNone:
	case LeaseRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: redis url is required for the redis lease", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown lease backend %q", domain.ErrInvalidConfig, c.Lease)
	}
	return nil
}
