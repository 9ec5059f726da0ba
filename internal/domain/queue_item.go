package domain

import "time"

// Priority orders queue items for delivery.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities lists every priority in processing order.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Rank returns the processing rank; lower ranks are delivered first.
// Unknown priorities rank as medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// Normalize maps empty or unknown priorities to medium.
func (p Priority) Normalize() Priority {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p
	default:
		return PriorityMedium
	}
}

// QueueItem is one not-yet-confirmed outbound HTTP mutation.
type QueueItem struct {
	ID          string
	Seq         int64
	URL         string
	Method      string
	Body        []byte
	Headers     map[string]string
	Priority    Priority
	RetryCount  int
	CreatedAt   time.Time
	LastAttempt *time.Time
	Error       string

	// RecordKind and RecordID link the item to the record it mirrors, if any.
	RecordKind RecordKind
	RecordID   string
}

// HasRecord reports whether the item mirrors a durable record.
func (q QueueItem) HasRecord() bool {
	return q.RecordKind != "" && q.RecordID != ""
}

// DeadLetterReason explains why an item left the queue without delivery.
type DeadLetterReason string

const (
	ReasonMaxRetries DeadLetterReason = "max_retries"
	ReasonAuth       DeadLetterReason = "auth"
	ReasonRejected   DeadLetterReason = "rejected"
)

// DeadLetter is a queue item that failed terminally.
type DeadLetter struct {
	Item       QueueItem
	FailedAt   time.Time
	Reason     DeadLetterReason
	StatusCode int
}

// QueueStats is an advisory summary of pending work.
type QueueStats struct {
	Pending     map[Priority]int
	Total       int
	DeadLetters int
	Draining    bool
}

// DeliveryOutcome is the per-item result of a drain.
type DeliveryOutcome string

const (
	OutcomeDelivered DeliveryOutcome = "delivered"
	OutcomeRetry     DeliveryOutcome = "retry"
	OutcomeAbandoned DeliveryOutcome = "abandoned"
)

// DeliveryResult reports what happened to one item during a drain.
type DeliveryResult struct {
	ItemID     string
	Outcome    DeliveryOutcome
	StatusCode int
	RetryCount int
	Reason     DeadLetterReason
	Err        error
}
