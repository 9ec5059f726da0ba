package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config with durations as strings for TOML and YAML files.
type FileConfig struct {
	DBPath          string  `toml:"db_path" yaml:"db_path"`
	BaseURL         string  `toml:"base_url" yaml:"base_url"`
	TokenFile       string  `toml:"token_file" yaml:"token_file"`
	ProbeURL        string  `toml:"probe_url" yaml:"probe_url"`
	ProbeInterval   string  `toml:"probe_interval" yaml:"probe_interval"`
	ProbeTimeout    string  `toml:"probe_timeout" yaml:"probe_timeout"`
	HTTPTimeout     string  `toml:"http_timeout" yaml:"http_timeout"`
	MaxRetries      int     `toml:"max_retries" yaml:"max_retries"`
	BaseDelay       string  `toml:"base_delay" yaml:"base_delay"`
	MaxDelay        string  `toml:"max_delay" yaml:"max_delay"`
	LeaseTTL        string  `toml:"lease_ttl" yaml:"lease_ttl"`
	OnlineDebounce  string  `toml:"online_debounce" yaml:"online_debounce"`
	SyncInterval    string  `toml:"sync_interval" yaml:"sync_interval"`
	SkewTolerance   string  `toml:"skew_tolerance" yaml:"skew_tolerance"`
	Lease           string  `toml:"lease" yaml:"lease"`
	RedisURL        string  `toml:"redis_url" yaml:"redis_url"`
	LogLevel        string  `toml:"log_level" yaml:"log_level"`
	LogFormat       string  `toml:"log_format" yaml:"log_format"`
	MetricsAddr     string  `toml:"metrics_addr" yaml:"metrics_addr"`
	TraceExporter   string  `toml:"trace_exporter" yaml:"trace_exporter"`
	OTLPEndpoint    string  `toml:"otlp_endpoint" yaml:"otlp_endpoint"`
	TraceSampleRate float64 `toml:"trace_sample_rate" yaml:"trace_sample_rate"`
	WatchToken      *bool   `toml:"watch_token" yaml:"watch_token"`
}

// LoadFileConfig reads a config file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml %s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse toml %s: %w", path, err)
		}
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.offlinesync/config.toml.
func DefaultConfigPath() string {
	return filepath.Join(Home(), "config.toml")
}

// ApplyFileConfig applies fc to cfg, skipping fields whose flag is in
// changed.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	l := newLayer(changed)

	strs := fc.stringValues()
	for _, f := range cfg.stringFields() {
		set(l, f.flag, strs[f.env], f.dst)
	}
	durs := fc.durationValues()
	for _, f := range cfg.durationFields() {
		parse(l, f.flag, durs[f.env], time.ParseDuration, f.dst)
	}
	set(l, "max-retries", fc.MaxRetries, &cfg.MaxRetries)
	set(l, "trace-sample-rate", fc.TraceSampleRate, &cfg.TraceSampleRate)
	setPtr(l, "watch-token", fc.WatchToken, &cfg.WatchToken)

	return l.err
}

// stringValues and durationValues key file values by the env suffix of their field.
func (fc FileConfig) stringValues() map[string]string {
	return map[string]string{
		"DB_PATH":        fc.DBPath,
		"BASE_URL":       fc.BaseURL,
		"TOKEN_FILE":     fc.TokenFile,
		"PROBE_URL":      fc.ProbeURL,
		"LEASE":          fc.Lease,
		"REDIS_URL":      fc.RedisURL,
		"LOG_LEVEL":      fc.LogLevel,
		"LOG_FORMAT":     fc.LogFormat,
		"METRICS_ADDR":   fc.MetricsAddr,
		"TRACE_EXPORTER": fc.TraceExporter,
		"OTLP_ENDPOINT":  fc.OTLPEndpoint,
	}
}

func (fc FileConfig) durationValues() map[string]string {
	return map[string]string{
		"PROBE_INTERVAL":  fc.ProbeInterval,
		"PROBE_TIMEOUT":   fc.ProbeTimeout,
		"HTTP_TIMEOUT":    fc.HTTPTimeout,
		"BASE_DELAY":      fc.BaseDelay,
		"MAX_DELAY":       fc.MaxDelay,
		"LEASE_TTL":       fc.LeaseTTL,
		"ONLINE_DEBOUNCE": fc.OnlineDebounce,
		"SYNC_INTERVAL":   fc.SyncInterval,
		"SKEW_TOLERANCE":  fc.SkewTolerance,
	}
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
