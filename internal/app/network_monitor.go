package app

import (
	"sync"
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
	"github.com/bft-labs/offlinesync/internal/ports"
)

var (
	_ ports.NetworkStatus   = (*NetworkMonitor)(nil)
	_ ports.NetworkReporter = (*NetworkMonitor)(nil)
)

// NetworkMonitor tracks connectivity and notifies subscribers on change.
//
// Online/offline changes are edge-triggered: reporting the same status twice
// does not notify. Quality hints (effective type, RTT) refresh the snapshot
// silently. There is no debouncing.
type NetworkMonitor struct {
	mu     sync.RWMutex
	state  domain.NetworkState
	subs   map[int]func(domain.NetworkState)
	nextID int
	now    func() time.Time
	logger ports.Logger

	// notifyMu serializes delivery so subscribers observe states in order.
	notifyMu sync.Mutex
}

// NewNetworkMonitor creates a monitor with the given initial status.
func NewNetworkMonitor(online bool, logger ports.Logger) *NetworkMonitor {
	now := time.Now
	state := domain.NetworkState{Online: online, Since: now()}
	if online {
		state.LastOnlineAt = state.Since
	} else {
		state.LastOfflineAt = state.Since
	}
	return &NetworkMonitor{
		state:  state,
		subs:   make(map[int]func(domain.NetworkState)),
		now:    now,
		logger: scoped(logger, "network_monitor"),
	}
}

// CurrentState returns the current snapshot.
func (m *NetworkMonitor) CurrentState() domain.NetworkState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsOnline reports the current connectivity.
func (m *NetworkMonitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Online
}

// Subscribe registers fn. It is called synchronously with the current state,
// then on every change. The returned function unsubscribes. fn must not call
// SetOnline or Report.
func (m *NetworkMonitor) Subscribe(fn func(domain.NetworkState)) (unsubscribe func()) {
	m.notifyMu.Lock()
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	state := m.state
	m.mu.Unlock()
	fn(state)
	m.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// SetOnline reports connectivity without quality hints.
func (m *NetworkMonitor) SetOnline(online bool) {
	m.mu.RLock()
	eff, rtt := m.state.EffectiveType, m.state.RTT
	m.mu.RUnlock()
	if !online {
		eff, rtt = "", 0
	}
	m.Report(online, eff, rtt)
}

// Report records connectivity with quality hints. It reports whether the
// call was an online/offline transition.
func (m *NetworkMonitor) Report(online bool, effectiveType string, rtt time.Duration) bool {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	next := m.state
	next.EffectiveType = effectiveType
	next.RTT = rtt
	if next.Online == online {
		m.state = next
		m.mu.Unlock()
		return false
	}
	now := m.now()
	next.Online = online
	next.Since = now
	if online {
		next.LastOnlineAt = now
	} else {
		next.LastOfflineAt = now
	}
	m.state = next
	subs := make([]func(domain.NetworkState), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	m.logger.Info("network state changed",
		ports.Bool("online", online),
		ports.String("effective_type", effectiveType),
		ports.Duration("rtt", rtt),
	)
	for _, fn := range subs {
		fn(next)
	}
	return true
}
