package offlinesync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bft-labs/offlinesync/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/offlinesync/internal/adapters/http"
	redisAdapter "github.com/bft-labs/offlinesync/internal/adapters/redis"
	"github.com/bft-labs/offlinesync/internal/adapters/sqlite"
	"github.com/bft-labs/offlinesync/internal/app"
	"github.com/bft-labs/offlinesync/internal/domain"
	"github.com/bft-labs/offlinesync/internal/ports"
	"github.com/bft-labs/offlinesync/pkg/log"
)

// Service is the offline-first sync service. Use New() to create an
// instance and Start() to run its background drain triggers.
type Service struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	emitter   *eventEmitter
	logger    ports.Logger

	store      *sqlite.Store
	tokenFile  *fs.TokenFile
	redisLease *redisAdapter.Lease
	monitor    *app.NetworkMonitor
	queue      *app.SyncQueue
	client     *app.Client
	agent      *app.Agent

	plugins []Plugin

	mu          sync.Mutex
	unsubscribe func()
	active      bool // plugins initialized and monitor subscribed
	closed      bool
}

// New opens the durable store and wires the service. The instance is created
// in StateStopped; call Start() to begin reacting to connectivity.
func New(cfg Config, opts ...Option) (*Service, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions(&http.Client{Timeout: cfg.HTTPTimeout})
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.OrNoop(o.logger)
	emitter := &eventEmitter{handler: o.eventHandler}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &Service{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(logger, emitter),
		emitter:   emitter,
		logger:    logger.With(log.Component("service")),
		store:     store,
		plugins:   o.plugins,
	}

	var tokens ports.TokenSource = ports.StaticToken(cfg.Token)
	if cfg.TokenFile != "" {
		tf, err := fs.NewTokenFile(cfg.TokenFile)
		if err != nil {
			s.closeResources()
			return nil, fmt.Errorf("load token file: %w", err)
		}
		s.tokenFile = tf
		tokens = tf
	}

	lease, err := s.selectLease()
	if err != nil {
		s.closeResources()
		return nil, err
	}

	s.monitor = app.NewNetworkMonitor(!cfg.StartOffline, logger)
	transport := httpAdapter.NewTransport(o.httpClient, cfg.BaseURL, tokens)
	reconciler := app.NewReconciler(store, store, app.NewResolver(cfg.SkewTolerance), logger)

	queueOpts := []app.QueueOption{
		app.WithQueueLogger(logger),
		app.WithDeliveryHook(reconciler),
		app.WithQueueEmitter(emitter),
	}
	if lease != nil {
		queueOpts = append(queueOpts, app.WithLease(lease))
	}
	if o.metrics != nil {
		queueOpts = append(queueOpts, app.WithMetrics(o.metrics))
	}
	if o.tracer != nil {
		queueOpts = append(queueOpts, app.WithTracer(o.tracer))
	}

	s.queue = app.NewSyncQueue(app.QueueConfig{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay,
		MaxDelay:   cfg.MaxDelay,
		LeaseTTL:   cfg.LeaseTTL,
	}, store, store, transport, s.monitor, queueOpts...)

	s.client = app.NewClient(transport, s.monitor, store, store, s.queue, reconciler, cfg.Endpoints, logger)
	s.agent = app.NewAgent(app.AgentConfig{OnlineDebounce: cfg.OnlineDebounce}, s.queue, s.monitor, logger)

	return s, nil
}

func (s *Service) selectLease() (ports.Lease, error) {
	if s.opts.lease != nil {
		return s.opts.lease, nil
	}
	switch s.config.Lease {
	case LeaseRedis:
		l, err := redisAdapter.NewLease(s.config.RedisURL, redisAdapter.DefaultKey)
		if err != nil {
			return nil, fmt.Errorf("redis lease: %w", err)
		}
		s.redisLease = l
		return l, nil
	case LeaseNone:
		return nil, nil
	default:
		return s.store, nil
	}
}

// Start begins reacting to connectivity changes and background triggers.
// Returns immediately; the provided context bounds the service lifetime.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrNotOpen
	}
	if !s.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := s.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx := s.lifecycle.Begin(ctx)
	s.unsubscribe = s.monitor.Subscribe(s.emitter.onNetwork)

	pluginCfg := PluginConfig{
		BaseURL:    s.config.BaseURL,
		HTTPClient: s.opts.httpClient,
		Logger:     log.OrNoop(s.opts.logger),
		Syncer:     s,
		Network:    s.monitor,
	}
	if s.tokenFile != nil {
		pluginCfg.Tokens = s.tokenFile
	}
	for i, p := range s.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			s.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			s.lifecycle.Cancel()
			s.shutdownPlugins(s.plugins[:i])
			s.unsubscribe()
			_ = s.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		s.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	s.active = true

	if err := s.lifecycle.TransitionTo(app.StateRunning, "agent starting"); err != nil {
		s.mu.Unlock()
		s.teardown()
		s.mu.Lock()
		return err
	}

	s.lifecycle.Go("agent", func() {
		err := s.agent.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("agent error", ports.Err(err))
			_ = s.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		}
	})

	return nil
}

// Stop shuts down the background triggers and plugins. Deliveries already
// in flight finish or are retried on the next drain. The store stays open.
func (s *Service) Stop() error {
	s.mu.Lock()

	if !s.lifecycle.CanStop() {
		s.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := s.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		s.mu.Unlock()
		return err
	}
	s.lifecycle.Cancel()
	s.mu.Unlock()

	err := s.teardown()

	if err != nil {
		_ = s.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = s.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// teardown cancels the run context, waits for workers and shuts down
// plugins. It is a no-op when nothing is active.
func (s *Service) teardown() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	s.lifecycle.Cancel()
	s.mu.Unlock()

	err := s.lifecycle.WaitWithTimeout(app.ShutdownTimeout)
	s.shutdownPlugins(s.plugins)
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	return err
}

func (s *Service) shutdownPlugins(plugins []Plugin) {
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			s.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
		} else {
			s.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
		}
	}
}

// Close stops the service if it is running, waits for scheduled drains and
// closes the store. Safe to call more than once.
func (s *Service) Close() error {
	if s.lifecycle.CanStop() {
		if err := s.Stop(); err != nil && !errors.Is(err, domain.ErrNotRunning) {
			s.logger.Warn("stop during close", ports.Err(err))
		}
	} else if err := s.teardown(); err != nil {
		// Crashed while running.
		s.logger.Warn("teardown during close", ports.Err(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.queue.Close()
	return s.closeResources()
}

func (s *Service) closeResources() error {
	var errs []error
	if s.redisLease != nil {
		errs = append(errs, s.redisLease.Close())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

// Status returns the current lifecycle state.
func (s *Service) Status() State {
	return convertState(s.lifecycle.State())
}

// Client returns the offline-aware client.
func (s *Service) Client() *Client {
	return s.client
}

// Queue returns the sync queue.
func (s *Service) Queue() *Queue {
	return s.queue
}

// Monitor returns the network monitor.
func (s *Service) Monitor() *NetworkMonitor {
	return s.monitor
}

// SetOnline reports connectivity from the host.
func (s *Service) SetOnline(online bool) {
	s.monitor.SetOnline(online)
}

// Trigger asks the running service to handle a background tag
// (BackgroundSyncTag drains the queue). It reports false when the service
// is not running or the trigger buffer is full.
func (s *Service) Trigger(tag string) bool {
	if s.lifecycle.State() != app.StateRunning {
		return false
	}
	return s.agent.Trigger(tag)
}

// Drain processes the queue now, without Start.
func (s *Service) Drain(ctx context.Context) ([]DeliveryResult, error) {
	return s.queue.ProcessQueue(ctx)
}

// Stats returns a read-only queue summary.
func (s *Service) Stats(ctx context.Context) (QueueStats, error) {
	return s.queue.GetStats(ctx)
}

// Username returns the username stored with the session token, if any.
func (s *Service) Username() string {
	if s.tokenFile == nil {
		return ""
	}
	return s.tokenFile.Username()
}

// Logout clears all local data and the stored session.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.client.Logout(ctx); err != nil {
		return err
	}
	if s.tokenFile != nil {
		return s.tokenFile.Clear()
	}
	return nil
}
