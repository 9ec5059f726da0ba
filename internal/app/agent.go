package app

import (
	"context"
	"errors"
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
	"github.com/bft-labs/offlinesync/internal/ports"
)

// DefaultOnlineDebounce is how long connectivity must hold after coming
// back before a drain starts.
const DefaultOnlineDebounce = 2 * time.Second

// AgentConfig contains configuration for the agent loop.
type AgentConfig struct {
	OnlineDebounce time.Duration
}

// Agent connects drain triggers to the queue: connectivity coming back
// (debounced), background tags, and explicit requests.
type Agent struct {
	config   AgentConfig
	queue    *SyncQueue
	monitor  *NetworkMonitor
	logger   ports.Logger
	triggers chan string
}

// NewAgent creates a new agent with the given dependencies.
func NewAgent(config AgentConfig, queue *SyncQueue, monitor *NetworkMonitor, logger ports.Logger) *Agent {
	if config.OnlineDebounce < 0 {
		config.OnlineDebounce = 0
	}
	return &Agent{
		config:   config,
		queue:    queue,
		monitor:  monitor,
		logger:   scoped(logger, "agent"),
		triggers: make(chan string, 8),
	}
}

// Trigger asks the running agent to handle a background tag. It reports
// false if the trigger buffer is full.
func (a *Agent) Trigger(tag string) bool {
	select {
	case a.triggers <- tag:
		return true
	default:
		return false
	}
}

// Run executes the trigger loop until ctx is canceled.
func (a *Agent) Run(ctx context.Context) error {
	states := make(chan bool, 1)
	unsubscribe := a.monitor.Subscribe(func(s domain.NetworkState) {
		// Keep only the latest status.
		for {
			select {
			case states <- s.Online:
				return
			default:
				select {
				case <-states:
				default:
				}
			}
		}
	})
	defer unsubscribe()

	var (
		wasOnline bool
		timer     *time.Timer
		fire      <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, fire = nil, nil
		}
	}
	defer stopTimer()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case online := <-states:
			switch {
			case online && !wasOnline:
				stopTimer()
				timer = time.NewTimer(a.config.OnlineDebounce)
				fire = timer.C
			case !online:
				stopTimer()
			}
			wasOnline = online

		case <-fire:
			timer, fire = nil, nil
			if !a.monitor.IsOnline() {
				continue
			}
			a.drain(ctx, "online")

		case tag := <-a.triggers:
			results, err := a.queue.TriggerBackground(ctx, tag)
			a.report(tag, results, err)
		}
	}
}

func (a *Agent) drain(ctx context.Context, reason string) {
	results, err := a.queue.ProcessQueue(ctx)
	a.report(reason, results, err)
}

func (a *Agent) report(reason string, results []domain.DeliveryResult, err error) {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		a.logger.Error("drain failed", ports.String("trigger", reason), ports.Err(err))
		return
	}
	if len(results) == 0 {
		return
	}
	var delivered, retried, abandoned int
	for _, r := range results {
		switch r.Outcome {
		case domain.OutcomeDelivered:
			delivered++
		case domain.OutcomeRetry:
			retried++
		case domain.OutcomeAbandoned:
			abandoned++
		}
	}
	a.logger.Info("drain finished",
		ports.String("trigger", reason),
		ports.Int("delivered", delivered),
		ports.Int("retried", retried),
		ports.Int("abandoned", abandoned),
	)
}
