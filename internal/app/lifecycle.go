package app

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
	"github.com/bft-labs/offlinesync/internal/ports"
)

// ShutdownTimeout bounds how long Stop waits for workers.
const ShutdownTimeout = 30 * time.Second

// State is the service lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

var stateNames = [...]string{"Stopped", "Starting", "Running", "Stopping", "Crashed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting},
}

// EventEmitter is notified after every state change.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle is the service state machine. It also owns the run context and
// the background workers started under it.
type Lifecycle struct {
	mu      sync.RWMutex
	state   State
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  ports.Logger
	emitter EventEmitter
}

func NewLifecycle(logger ports.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		state:   StateStopped,
		logger:  scoped(logger, "lifecycle"),
		emitter: emitter,
	}
}

func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo moves to next. Leaving an idle state (Stopped, Crashed) for
// anything but Starting fails with ErrNotRunning; any other illegal move
// fails with ErrAlreadyRunning.
func (l *Lifecycle) TransitionTo(next State, reason string) error {
	l.mu.Lock()
	prev := l.state
	if !slices.Contains(transitions[prev], next) {
		l.mu.Unlock()
		if prev == StateStopped || prev == StateCrashed {
			return domain.ErrNotRunning
		}
		return domain.ErrAlreadyRunning
	}
	l.state = next
	l.mu.Unlock()

	if l.emitter != nil {
		l.emitter.OnStateChange(prev, next, reason)
	}
	l.logger.Info("state transition",
		ports.String("from", prev.String()),
		ports.String("to", next.String()),
		ports.String("reason", reason),
	)
	return nil
}

func (l *Lifecycle) can(next State) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(transitions[l.state], next)
}

// CanStart reports whether the service may enter Starting.
func (l *Lifecycle) CanStart() bool { return l.can(StateStarting) }

// CanStop reports whether the service may enter Stopping.
func (l *Lifecycle) CanStop() bool { return l.can(StateStopping) }

// Begin derives the run context from parent. Cancel ends it.
func (l *Lifecycle) Begin(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()
	return ctx
}

// Cancel ends the run context started by Begin, if any.
func (l *Lifecycle) Cancel() {
	l.mu.RLock()
	cancel := l.cancel
	l.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Go runs fn as a tracked worker. A panic in fn moves the lifecycle to
// Crashed instead of taking the process down.
func (l *Lifecycle) Go(name string, fn func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("worker panicked", ports.String("worker", name), ports.Any("panic", r))
				_ = l.TransitionTo(StateCrashed, "worker "+name+" panicked")
			}
		}()
		fn()
	}()
}

// WaitWithTimeout waits for every worker started with Go.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		l.logger.Warn("workers still running at shutdown", ports.Duration("timeout", timeout))
		return domain.ErrShutdownTimeout
	}
}
