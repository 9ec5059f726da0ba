package ports

import (
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
)

// MetricsRecorder receives queue activity for export.
type MetricsRecorder interface {
	ItemEnqueued(p domain.Priority)
	ItemDelivered(p domain.Priority, latency time.Duration)
	ItemRetried(p domain.Priority)
	ItemAbandoned(p domain.Priority, reason domain.DeadLetterReason)
	DrainCompleted(d time.Duration, items int)
	PendingObserved(stats domain.QueueStats)
}

// NoopMetrics discards all metrics.
type NoopMetrics struct{}

func (NoopMetrics) ItemEnqueued(domain.Priority)                            {}
func (NoopMetrics) ItemDelivered(domain.Priority, time.Duration)            {}
func (NoopMetrics) ItemRetried(domain.Priority)                             {}
func (NoopMetrics) ItemAbandoned(domain.Priority, domain.DeadLetterReason) {}
func (NoopMetrics) DrainCompleted(time.Duration, int)                       {}
func (NoopMetrics) PendingObserved(domain.QueueStats)                       {}
