// Package periodicsync drains the sync queue on a fixed interval, as a
// backstop for missed connectivity transitions.
package periodicsync

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/offlinesync/pkg/log"
	"github.com/bft-labs/offlinesync/pkg/offlinesync"
)

// Plugin triggers a background sync every Interval.
type Plugin struct {
	interval       time.Duration
	runImmediately bool

	syncer offlinesync.Syncer
	logger offlinesync.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds configuration options for periodic sync.
type Config struct {
	// Interval between triggers.
	// Default: 5 minutes
	Interval time.Duration

	// RunImmediately triggers once on startup.
	RunImmediately bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Interval:       5 * time.Minute,
		RunImmediately: true,
	}
}

// New creates a periodic sync plugin.
func New(cfg Config) *Plugin {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Plugin{
		interval:       cfg.Interval,
		runImmediately: cfg.RunImmediately,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "periodicsync"
}

// Initialize starts the trigger loop.
func (p *Plugin) Initialize(ctx context.Context, cfg offlinesync.PluginConfig) error {
	p.syncer = cfg.Syncer
	p.logger = log.OrNoop(cfg.Logger).With(log.Component("periodicsync"))

	if p.syncer == nil {
		p.logger.Warn("periodic sync disabled: no syncer")
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("periodic sync started", log.Duration("interval", p.interval))

	p.wg.Add(1)
	go p.loop(loopCtx)
	return nil
}

// Shutdown stops the trigger loop.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Plugin) loop(ctx context.Context) {
	defer p.wg.Done()

	if p.runImmediately {
		p.trigger()
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.trigger()
		}
	}
}

func (p *Plugin) trigger() {
	if !p.syncer.Trigger(offlinesync.BackgroundSyncTag) {
		p.logger.Debug("periodic sync skipped: trigger not accepted")
	}
}

var _ offlinesync.Plugin = (*Plugin)(nil)
