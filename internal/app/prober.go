package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
	"github.com/bft-labs/offlinesync/internal/ports"
)

// Default probe settings.
const (
	DefaultProbeInterval = 30 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
)

// ProberConfig configures connectivity probing.
type ProberConfig struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// Prober feeds a network monitor from periodic HTTP HEAD requests. Any
// response, whatever its status, counts as online.
type Prober struct {
	cfg     ProberConfig
	client  ports.HTTPClient
	monitor ports.NetworkReporter
	logger  ports.Logger
}

// NewProber creates a prober. client may be nil.
func NewProber(cfg ProberConfig, client ports.HTTPClient, monitor ports.NetworkReporter, logger ports.Logger) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultProbeInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Prober{cfg: cfg, client: client, monitor: monitor, logger: scoped(logger, "prober")}
}

// Probe performs one check and reports the result to the monitor.
func (p *Prober) Probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, p.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			p.monitor.Report(false, "", 0)
		}
		return &domain.NetworkError{Err: err}
	}
	resp.Body.Close()

	rtt := time.Since(start)
	p.monitor.Report(true, domain.ClassifyRTT(rtt), rtt)
	return nil
}

// Run probes until ctx is canceled. While probes fail, the wait between
// them backs off from one second up to the configured interval.
func (p *Prober) Run(ctx context.Context) error {
	initial := time.Second
	if p.cfg.Interval < initial {
		initial = p.cfg.Interval
	}
	bo := newBackoff(initial, p.cfg.Interval)
	for {
		wait := p.cfg.Interval
		if err := p.Probe(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Debug("probe failed", ports.Err(err))
			wait = bo.Next()
		} else {
			bo.Reset()
		}

		if !sleepCtx(ctx, wait) {
			return ctx.Err()
		}
	}
}
