package cliconfig

import (
	"os"
	"strconv"
	"time"
)

// ApplyEnvConfig applies OFFLINESYNC_* environment variables to cfg,
// skipping fields whose flag is in changed.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	l := newLayer(changed)
	env := func(suffix string) string { return os.Getenv(EnvPrefix + suffix) }

	for _, f := range cfg.stringFields() {
		set(l, f.flag, env(f.env), f.dst)
	}
	for _, f := range cfg.durationFields() {
		parse(l, f.flag, env(f.env), time.ParseDuration, f.dst)
	}
	parse(l, "max-retries", env("MAX_RETRIES"), strconv.Atoi, &cfg.MaxRetries)
	parse(l, "trace-sample-rate", env("TRACE_SAMPLE_RATE"), parseFloat, &cfg.TraceSampleRate)
	parse(l, "watch-token", env("WATCH_TOKEN"), strconv.ParseBool, &cfg.WatchToken)

	return l.err
}
