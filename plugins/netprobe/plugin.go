// Package netprobe derives connectivity from periodic HTTP probes and feeds
// it to the service's network monitor.
package netprobe

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/offlinesync/internal/app"
	"github.com/bft-labs/offlinesync/pkg/log"
	"github.com/bft-labs/offlinesync/pkg/offlinesync"
)

// Plugin runs a connectivity prober for the lifetime of the service.
type Plugin struct {
	url      string
	interval time.Duration
	timeout  time.Duration

	logger offlinesync.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds configuration options for network probing.
type Config struct {
	// URL is probed with HEAD requests. Default: the service base URL.
	URL string

	// Interval between probes while online.
	// Default: 30 seconds
	Interval time.Duration

	// Timeout per probe.
	// Default: 5 seconds
	Timeout time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Interval: app.DefaultProbeInterval,
		Timeout:  app.DefaultProbeTimeout,
	}
}

// New creates a network probe plugin.
func New(cfg Config) *Plugin {
	if cfg.Interval <= 0 {
		cfg.Interval = app.DefaultProbeInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = app.DefaultProbeTimeout
	}
	return &Plugin{
		url:      cfg.URL,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "netprobe"
}

// Initialize starts probing.
func (p *Plugin) Initialize(ctx context.Context, cfg offlinesync.PluginConfig) error {
	p.logger = log.OrNoop(cfg.Logger).With(log.Component("netprobe"))

	url := p.url
	if url == "" {
		url = cfg.BaseURL
	}
	if url == "" || cfg.Network == nil {
		p.logger.Warn("network probe disabled: no probe url or network reporter")
		return nil
	}

	prober := app.NewProber(app.ProberConfig{
		URL:      url,
		Interval: p.interval,
		Timeout:  p.timeout,
	}, cfg.HTTPClient, cfg.Network, cfg.Logger)

	probeCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("network probe started")

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := prober.Run(probeCtx); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Error("network probe stopped")
		}
	}()
	return nil
}

// Shutdown stops probing.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

var _ offlinesync.Plugin = (*Plugin)(nil)
