package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/offlinesync/internal/metrics"
	"github.com/bft-labs/offlinesync/internal/tracing"
	"github.com/bft-labs/offlinesync/pkg/log"
	"github.com/bft-labs/offlinesync/pkg/offlinesync"
	"github.com/bft-labs/offlinesync/plugins/netprobe"
	"github.com/bft-labs/offlinesync/plugins/periodicsync"
	"github.com/bft-labs/offlinesync/plugins/tokenwatcher"
)

func newRunCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync service until interrupted",
		Long: `Run probes connectivity, drains the queue whenever the network comes back
and serves metrics. SIGUSR1 triggers an immediate drain.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringVar(&c.cfg.ProbeURL, "probe-url", c.cfg.ProbeURL, "URL probed for connectivity (default: base URL)")
	f.DurationVar(&c.cfg.ProbeInterval, "probe-interval", c.cfg.ProbeInterval, "interval between connectivity probes")
	f.DurationVar(&c.cfg.ProbeTimeout, "probe-timeout", c.cfg.ProbeTimeout, "timeout per connectivity probe")
	f.DurationVar(&c.cfg.OnlineDebounce, "debounce", c.cfg.OnlineDebounce, "how long connectivity must hold before a drain")
	f.DurationVar(&c.cfg.SyncInterval, "sync-interval", c.cfg.SyncInterval, "periodic drain interval, 0 disables")
	f.BoolVar(&c.cfg.WatchToken, "watch-token", c.cfg.WatchToken, "reload the token file when it changes")
	f.StringVar(&c.cfg.MetricsAddr, "metrics-addr", c.cfg.MetricsAddr, "address for the Prometheus /metrics endpoint, empty disables")
	f.StringVar(&c.cfg.TraceExporter, "trace-exporter", c.cfg.TraceExporter, "trace exporter: none, stdout or otlp")
	f.StringVar(&c.cfg.OTLPEndpoint, "otlp-endpoint", c.cfg.OTLPEndpoint, "OTLP/HTTP collector endpoint")
	f.Float64Var(&c.cfg.TraceSampleRate, "trace-sample-rate", c.cfg.TraceSampleRate, "fraction of drains traced")
	return cmd
}

func (c *cli) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.New(ctx, tracing.Config{
		Exporter:     tracing.ExporterType(c.cfg.TraceExporter),
		OTLPEndpoint: c.cfg.OTLPEndpoint,
		ServiceName:  "offlinesync",
		SampleRate:   c.cfg.TraceSampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("tracing shutdown", log.Err(err))
		}
	}()

	recorder := metrics.NewRecorder()

	opts := []offlinesync.Option{
		offlinesync.WithLogger(c.logger),
		offlinesync.WithMetrics(recorder),
		offlinesync.WithTracer(tp.Tracer()),
		netprobe.WithNetProbe(netprobe.Config{
			URL:      c.cfg.ProbeURL,
			Interval: c.cfg.ProbeInterval,
			Timeout:  c.cfg.ProbeTimeout,
		}),
	}
	if c.cfg.SyncInterval > 0 {
		opts = append(opts, periodicsync.WithPeriodicSync(periodicsync.Config{Interval: c.cfg.SyncInterval}))
	}
	if c.cfg.WatchToken {
		opts = append(opts, tokenwatcher.WithTokenWatcher(tokenwatcher.DefaultConfig()))
	}

	// Offline until the first probe answers.
	svc, err := offlinesync.New(c.serviceConfig(true), opts...)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	defer svc.Close()

	if c.cfg.MetricsAddr != "" {
		srv := serveMetrics(c.cfg.MetricsAddr, recorder, c.logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	trigger := make(chan os.Signal, 1)
	if len(triggerSignals) > 0 {
		signal.Notify(trigger, triggerSignals...)
		defer signal.Stop(trigger)
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	c.logger.Info("offlinesync running",
		log.String("db", c.cfg.DBPath),
		log.String("base_url", c.cfg.BaseURL),
	)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("received signal, stopping")
			return nil

		case <-trigger:
			if svc.Trigger(offlinesync.BackgroundSyncTag) {
				c.logger.Info("sync requested by signal")
			}

		case <-ticker.C:
			if svc.Status() == offlinesync.StateCrashed {
				return errors.New("service crashed")
			}
		}
	}
}

func serveMetrics(addr string, recorder *metrics.Recorder, logger log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", log.Err(err))
		}
	}()
	logger.Info("metrics listening", log.String("addr", addr))
	return srv
}
