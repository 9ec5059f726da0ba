package offlinesync

import (
	"time"

	"github.com/bft-labs/offlinesync/internal/app"
	"github.com/bft-labs/offlinesync/internal/domain"
)

// StateChangeEvent is emitted on lifecycle transitions.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// NetworkEvent is emitted when connectivity or its quality changes.
type NetworkEvent struct {
	State NetworkState
}

// DeliveredEvent is emitted when a queued mutation is confirmed.
type DeliveredEvent struct {
	Item       QueueItem
	StatusCode int
	Latency    time.Duration
}

// RetryEvent is emitted when a delivery attempt failed and will be retried.
type RetryEvent struct {
	Item  QueueItem
	Err   error
	Delay time.Duration
}

// DeadLetterEvent is emitted when a mutation is abandoned.
type DeadLetterEvent struct {
	DeadLetter DeadLetter
}

// AuthRequiredEvent is emitted when the remote API rejected the credentials.
// The host should obtain a new token; the mutation has been dead-lettered.
type AuthRequiredEvent struct {
	Item       QueueItem
	StatusCode int
}

// EventHandler receives service events.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnNetworkChange(NetworkEvent)
	OnDelivered(DeliveredEvent)
	OnRetry(RetryEvent)
	OnDeadLetter(DeadLetterEvent)
	OnAuthRequired(AuthRequiredEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to handle
// only some events.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)   {}
func (BaseEventHandler) OnNetworkChange(NetworkEvent)     {}
func (BaseEventHandler) OnDelivered(DeliveredEvent)       {}
func (BaseEventHandler) OnRetry(RetryEvent)               {}
func (BaseEventHandler) OnDeadLetter(DeadLetterEvent)     {}
func (BaseEventHandler) OnAuthRequired(AuthRequiredEvent) {}

// eventEmitter adapts an EventHandler to the internal emitter interfaces.
type eventEmitter struct {
	handler EventHandler
}

var (
	_ app.EventEmitter = (*eventEmitter)(nil)
	_ app.QueueEmitter = (*eventEmitter)(nil)
)

func (e *eventEmitter) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitter) onNetwork(s domain.NetworkState) {
	if e.handler == nil {
		return
	}
	e.handler.OnNetworkChange(NetworkEvent{State: s})
}

func (e *eventEmitter) OnDelivered(item domain.QueueItem, statusCode int, latency time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnDelivered(DeliveredEvent{Item: item, StatusCode: statusCode, Latency: latency})
}

func (e *eventEmitter) OnRetry(item domain.QueueItem, err error, delay time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnRetry(RetryEvent{Item: item, Err: err, Delay: delay})
}

func (e *eventEmitter) OnDeadLetter(dl domain.DeadLetter) {
	if e.handler == nil {
		return
	}
	e.handler.OnDeadLetter(DeadLetterEvent{DeadLetter: dl})
}

func (e *eventEmitter) OnAuthRequired(item domain.QueueItem, statusCode int) {
	if e.handler == nil {
		return
	}
	e.handler.OnAuthRequired(AuthRequiredEvent{Item: item, StatusCode: statusCode})
}
