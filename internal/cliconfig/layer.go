package cliconfig

import (
	"fmt"
	"strconv"
	"time"
)

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "OFFLINESYNC_"

// layer writes one configuration source into a Config. A field whose flag
// was set on the command line is never touched. The first parse error
// stops further writes and is reported by err.
type layer struct {
	changed map[string]bool
	err     error
}

func newLayer(changed map[string]bool) *layer {
	return &layer{changed: changed}
}

func (l *layer) skip(flag string) bool {
	return l.err != nil || l.changed[flag]
}

// set stores v unless it is the zero value.
func set[T comparable](l *layer, flag string, v T, dst *T) {
	var zero T
	if v == zero || l.skip(flag) {
		return
	}
	*dst = v
}

// setPtr stores *v when present, so an explicit false in a file applies.
func setPtr[T any](l *layer, flag string, v *T, dst *T) {
	if v == nil || l.skip(flag) {
		return
	}
	*dst = *v
}

// parse converts raw with fn unless raw is empty.
func parse[T any](l *layer, flag, raw string, fn func(string) (T, error), dst *T) {
	if raw == "" || l.skip(flag) {
		return
	}
	v, err := fn(raw)
	if err != nil {
		l.err = fmt.Errorf("parse %s: %w", flag, err)
		return
	}
	*dst = v
}

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

// field binds a Config field to its flag name and environment suffix.
type field[T any] struct {
	flag string
	env  string
	dst  *T
}

func (c *Config) stringFields() []field[string] {
	return []field[string]{
		{"db", "DB_PATH", &c.DBPath},
		{"base-url", "BASE_URL", &c.BaseURL},
		{"token-file", "TOKEN_FILE", &c.TokenFile},
		{"probe-url", "PROBE_URL", &c.ProbeURL},
		{"lease", "LEASE", &c.Lease},
		{"redis-url", "REDIS_URL", &c.RedisURL},
		{"log-level", "LOG_LEVEL", &c.LogLevel},
		{"log-format", "LOG_FORMAT", &c.LogFormat},
		{"metrics-addr", "METRICS_ADDR", &c.MetricsAddr},
		{"trace-exporter", "TRACE_EXPORTER", &c.TraceExporter},
		{"otlp-endpoint", "OTLP_ENDPOINT", &c.OTLPEndpoint},
	}
}

func (c *Config) durationFields() []field[time.Duration] {
	return []field[time.Duration]{
		{"probe-interval", "PROBE_INTERVAL", &c.ProbeInterval},
		{"probe-timeout", "PROBE_TIMEOUT", &c.ProbeTimeout},
		{"timeout", "HTTP_TIMEOUT", &c.HTTPTimeout},
		{"base-delay", "BASE_DELAY", &c.BaseDelay},
		{"max-delay", "MAX_DELAY", &c.MaxDelay},
		{"lease-ttl", "LEASE_TTL", &c.LeaseTTL},
		{"debounce", "ONLINE_DEBOUNCE", &c.OnlineDebounce},
		{"sync-interval", "SYNC_INTERVAL", &c.SyncInterval},
		{"skew", "SKEW_TOLERANCE", &c.SkewTolerance},
	}
}
