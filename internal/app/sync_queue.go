package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bft-labs/offlinesync/internal/domain"
	"github.com/bft-labs/offlinesync/internal/ports"
	"github.com/bft-labs/offlinesync/pkg/log"
)

// Queue defaults.
const (
	DefaultMaxRetries = 3
	DefaultLeaseTTL   = 30 * time.Second

	// BackgroundSyncTag is the background delivery tag that drains the queue.
	BackgroundSyncTag = "sync-data"
)

// QueueConfig tunes delivery.
type QueueConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	LeaseTTL   time.Duration
}

// DefaultQueueConfig returns the defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		LeaseTTL:   DefaultLeaseTTL,
	}
}

// NewItem describes a mutation to enqueue.
type NewItem struct {
	URL        string
	Method     string
	Body       []byte
	Headers    map[string]string
	Priority   domain.Priority
	RecordKind domain.RecordKind
	RecordID   string
}

// DeliveryHook receives every successfully delivered item.
type DeliveryHook interface {
	Delivered(ctx context.Context, item domain.QueueItem, resp *ports.Response) error
}

// QueueEmitter is notified of per-item outcomes.
type QueueEmitter interface {
	OnDelivered(item domain.QueueItem, statusCode int, latency time.Duration)
	OnRetry(item domain.QueueItem, err error, delay time.Duration)
	OnDeadLetter(dl domain.DeadLetter)
	OnAuthRequired(item domain.QueueItem, statusCode int)
}

// QueueOption configures a SyncQueue.
type QueueOption func(*SyncQueue)

// WithLease serializes drains across processes sharing the store.
func WithLease(l ports.Lease) QueueOption {
	return func(q *SyncQueue) { q.lease = l }
}

// WithQueueLogger sets the logger.
func WithQueueLogger(l ports.Logger) QueueOption {
	return func(q *SyncQueue) { q.logger = scoped(l, "sync_queue") }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m ports.MetricsRecorder) QueueOption {
	return func(q *SyncQueue) { q.metrics = m }
}

// WithTracer sets the tracer used for drain and delivery spans.
func WithTracer(t trace.Tracer) QueueOption {
	return func(q *SyncQueue) { q.tracer = t }
}

// WithDeliveryHook sets the hook run after each delivery.
func WithDeliveryHook(h DeliveryHook) QueueOption {
	return func(q *SyncQueue) { q.hook = h }
}

// WithQueueEmitter sets the outcome emitter.
func WithQueueEmitter(e QueueEmitter) QueueOption {
	return func(q *SyncQueue) { q.emitter = e }
}

// SyncQueue is the durable, priority-ordered outbox of pending mutations.
type SyncQueue struct {
	cfg       QueueConfig
	store     ports.QueueStore
	records   ports.RecordStore
	transport ports.Transport
	network   ports.NetworkStatus

	lease   ports.Lease
	holder  string
	logger  ports.Logger
	metrics ports.MetricsRecorder
	tracer  trace.Tracer
	hook    DeliveryHook
	emitter QueueEmitter

	sleep func(ctx context.Context, d time.Duration) bool
	now   func() time.Time

	draining atomic.Bool

	// schedMu orders Schedule's wg.Add against Close's wg.Wait.
	schedMu sync.Mutex
	closed  bool
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSyncQueue creates a queue. records may be nil when no item mirrors a
// durable record; network may be nil to treat the device as always online.
func NewSyncQueue(
	cfg QueueConfig,
	store ports.QueueStore,
	records ports.RecordStore,
	transport ports.Transport,
	network ports.NetworkStatus,
	opts ...QueueOption,
) *SyncQueue {
	def := DefaultQueueConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = def.LeaseTTL
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &SyncQueue{
		cfg:       cfg,
		store:     store,
		records:   records,
		transport: transport,
		network:   network,
		holder:    uuid.NewString(),
		logger:    log.NewNoopLogger(),
		metrics:   ports.NoopMetrics{},
		tracer:    otel.Tracer("github.com/bft-labs/offlinesync/queue"),
		sleep:     sleepCtx,
		now:       time.Now,
		baseCtx:   ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Holder returns the lease holder id of this queue.
func (q *SyncQueue) Holder() string {
	return q.holder
}

func (q *SyncQueue) online() bool {
	return q.network == nil || q.network.IsOnline()
}

// AddItem persists a mutation and, when online and idle, schedules a drain.
func (q *SyncQueue) AddItem(ctx context.Context, in NewItem) (string, error) {
	item := domain.QueueItem{
		ID:         uuid.NewString(),
		URL:        in.URL,
		Method:     strings.ToUpper(in.Method),
		Body:       in.Body,
		Headers:    in.Headers,
		Priority:   in.Priority.Normalize(),
		CreatedAt:  q.now().UTC(),
		RecordKind: in.RecordKind,
		RecordID:   in.RecordID,
	}
	if item.Method == "" {
		item.Method = http.MethodPost
	}
	if err := q.store.Enqueue(ctx, &item); err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	q.metrics.ItemEnqueued(item.Priority)
	q.logger.Debug("item queued",
		ports.String("id", item.ID),
		ports.String("method", item.Method),
		ports.String("url", item.URL),
		ports.String("priority", string(item.Priority)),
	)

	if q.online() && !q.draining.Load() {
		q.Schedule()
	}
	return item.ID, nil
}

// Schedule starts a drain in the background. Overlapping drains are no-ops.
func (q *SyncQueue) Schedule() {
	q.schedMu.Lock()
	defer q.schedMu.Unlock()
	if q.closed {
		return
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if _, err := q.ProcessQueue(q.baseCtx); err != nil && !errors.Is(err, context.Canceled) {
			q.logger.Error("background drain failed", ports.Err(err))
		}
	}()
}

// TriggerBackground handles a background delivery tag. Only the sync tag
// drains; unknown tags are ignored.
func (q *SyncQueue) TriggerBackground(ctx context.Context, tag string) ([]domain.DeliveryResult, error) {
	if tag != BackgroundSyncTag {
		q.logger.Debug("ignoring background tag", ports.String("tag", tag))
		return nil, nil
	}
	return q.ProcessQueue(ctx)
}

// ProcessQueue drains pending items in priority order while online.
//
// A call overlapping a drain in progress, or made while another process
// holds the lease, returns immediately with no results. Per-item failures are
// reported in the results; only store failures are returned as errors.
func (q *SyncQueue) ProcessQueue(ctx context.Context) ([]domain.DeliveryResult, error) {
	if !q.draining.CompareAndSwap(false, true) {
		q.logger.Debug("drain already in progress")
		return nil, nil
	}
	defer q.draining.Store(false)

	if !q.online() {
		return nil, nil
	}

	if q.lease != nil {
		ok, err := q.lease.Acquire(ctx, q.holder, q.cfg.LeaseTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire lease: %w", err)
		}
		if !ok {
			q.logger.Debug("drain lease held elsewhere")
			return nil, nil
		}
		defer func() {
			if err := q.lease.Release(context.Background(), q.holder); err != nil {
				q.logger.Warn("failed to release drain lease", ports.Err(err))
			}
		}()
	}

	ctx, span := q.tracer.Start(ctx, "sync_queue.drain")
	defer span.End()
	start := q.now()

	items, err := q.store.Pending(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load pending")
		return nil, fmt.Errorf("load pending: %w", err)
	}
	span.SetAttributes(attribute.Int("queue.pending", len(items)))

	var results []domain.DeliveryResult
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		if !q.online() {
			q.logger.Info("offline, stopping drain", ports.Int("remaining", len(items)-i))
			break
		}
		if q.lease != nil && i > 0 {
			if ok, err := q.lease.Acquire(ctx, q.holder, q.cfg.LeaseTTL); err != nil || !ok {
				q.logger.Warn("lost drain lease", ports.Err(err))
				break
			}
		}

		res, err := q.deliver(ctx, item)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "store failure")
			return results, err
		}
		if res.Outcome != "" {
			results = append(results, res)
		}
	}

	elapsed := q.now().Sub(start)
	q.metrics.DrainCompleted(elapsed, len(results))
	if stats, err := q.store.Stats(ctx); err == nil {
		q.metrics.PendingObserved(stats)
	}
	if len(results) > 0 {
		q.logger.Info("drain complete",
			ports.Int("processed", len(results)),
			ports.Duration("duration", elapsed),
		)
	}
	return results, nil
}

// deliver attempts one item. An empty Outcome means the attempt was cut
// short by cancellation and nothing was recorded.
func (q *SyncQueue) deliver(ctx context.Context, item domain.QueueItem) (domain.DeliveryResult, error) {
	ctx, span := q.tracer.Start(ctx, "sync_queue.deliver", trace.WithAttributes(
		attribute.String("queue.item_id", item.ID),
		attribute.String("http.method", item.Method),
		attribute.String("queue.priority", string(item.Priority)),
		attribute.Int("queue.retry_count", item.RetryCount),
	))
	defer span.End()

	res := domain.DeliveryResult{ItemID: item.ID, RetryCount: item.RetryCount}

	if item.RetryCount >= q.cfg.MaxRetries {
		if err := q.abandon(ctx, item, domain.ReasonMaxRetries, 0); err != nil {
			return res, err
		}
		res.Outcome = domain.OutcomeAbandoned
		res.Reason = domain.ReasonMaxRetries
		return res, nil
	}

	start := q.now()
	resp, err := q.transport.Do(ctx, ports.Request{
		Method:  item.Method,
		URL:     item.URL,
		Body:    item.Body,
		Headers: item.Headers,
	})
	latency := q.now().Sub(start)

	if err == nil {
		if err := q.store.DeleteItem(ctx, item.ID); err != nil {
			return res, fmt.Errorf("delete delivered item: %w", err)
		}
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		q.metrics.ItemDelivered(item.Priority, latency)
		if q.emitter != nil {
			q.emitter.OnDelivered(item, resp.StatusCode, latency)
		}
		q.logger.Debug("item delivered",
			ports.String("id", item.ID),
			ports.Int("status", resp.StatusCode),
			ports.Duration("latency", latency),
		)
		if q.hook != nil {
			if err := q.hook.Delivered(ctx, item, resp); err != nil {
				q.logger.Warn("post-delivery reconcile failed",
					ports.String("id", item.ID),
					ports.Err(err),
				)
			}
		}
		res.Outcome = domain.OutcomeDelivered
		res.StatusCode = resp.StatusCode
		return res, nil
	}

	if ctx.Err() != nil {
		return domain.DeliveryResult{}, nil
	}

	span.RecordError(err)
	status := domain.StatusCode(err)
	res.StatusCode = status
	res.Err = err

	switch reason, terminal := Classify(err); {
	case terminal:
		if err := q.abandon(ctx, withError(item, err, q.now()), reason, status); err != nil {
			return res, err
		}
		if reason == domain.ReasonAuth && q.emitter != nil {
			q.emitter.OnAuthRequired(item, status)
		}
		res.Outcome = domain.OutcomeAbandoned
		res.Reason = reason
		return res, nil
	default:
		item = withError(item, err, q.now())
		item.RetryCount++
		if err := q.store.UpdateAttempt(ctx, item); err != nil {
			return res, fmt.Errorf("record attempt: %w", err)
		}
		delay := RetryDelay(q.cfg.BaseDelay, q.cfg.MaxDelay, item.RetryCount)
		q.metrics.ItemRetried(item.Priority)
		if q.emitter != nil {
			q.emitter.OnRetry(item, err, delay)
		}
		q.logger.Warn("delivery failed, will retry",
			ports.String("id", item.ID),
			ports.Int("retry_count", item.RetryCount),
			ports.Int("status", status),
			ports.Duration("delay", delay),
			ports.Err(err),
		)
		res.Outcome = domain.OutcomeRetry
		res.RetryCount = item.RetryCount
		q.sleep(ctx, delay)
		return res, nil
	}
}

func withError(item domain.QueueItem, err error, now time.Time) domain.QueueItem {
	t := now.UTC()
	item.LastAttempt = &t
	item.Error = err.Error()
	return item
}

// abandon dead-letters an item and flags its origin record.
func (q *SyncQueue) abandon(ctx context.Context, item domain.QueueItem, reason domain.DeadLetterReason, status int) error {
	dl := domain.DeadLetter{
		Item:       item,
		FailedAt:   q.now().UTC(),
		Reason:     reason,
		StatusCode: status,
	}
	if err := q.store.DeadLetter(ctx, dl); err != nil {
		return fmt.Errorf("dead letter: %w", err)
	}
	if item.HasRecord() && q.records != nil {
		if err := q.records.MarkSyncFailed(ctx, item.RecordKind, item.RecordID, true); err != nil {
			q.logger.Warn("failed to flag record",
				ports.String("kind", string(item.RecordKind)),
				ports.String("record_id", item.RecordID),
				ports.Err(err),
			)
		}
	}
	q.metrics.ItemAbandoned(item.Priority, reason)
	if q.emitter != nil {
		q.emitter.OnDeadLetter(dl)
	}
	q.logger.Error("item abandoned",
		ports.String("id", item.ID),
		ports.String("reason", string(reason)),
		ports.Int("retry_count", item.RetryCount),
		ports.Int("status", status),
	)
	return nil
}

// Classify decides whether a delivery error is terminal. 401/403 are auth
// failures; other 4xx except 408 and 429 are rejections. Everything else,
// including network errors, is retryable.
func Classify(err error) (domain.DeadLetterReason, bool) {
	status := domain.StatusCode(err)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ReasonAuth, true
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return "", false
	case status >= 400 && status < 500:
		return domain.ReasonRejected, true
	default:
		return "", false
	}
}

// GetStats reports pending counts without touching queue state.
func (q *SyncQueue) GetStats(ctx context.Context) (domain.QueueStats, error) {
	stats, err := q.store.Stats(ctx)
	if err != nil {
		return stats, fmt.Errorf("queue stats: %w", err)
	}
	stats.Draining = q.draining.Load()
	return stats, nil
}

// PendingForRecord counts queued mutations for a record.
func (q *SyncQueue) PendingForRecord(ctx context.Context, kind domain.RecordKind, id string) (int, error) {
	return q.store.PendingForRecord(ctx, kind, id)
}

// DeadLetters lists terminally failed items.
func (q *SyncQueue) DeadLetters(ctx context.Context) ([]domain.DeadLetter, error) {
	return q.store.DeadLetters(ctx)
}

// Requeue returns a dead letter to the queue and clears the failure flag on
// its record.
func (q *SyncQueue) Requeue(ctx context.Context, id string) (domain.QueueItem, error) {
	item, err := q.store.Requeue(ctx, id)
	if err != nil {
		return item, fmt.Errorf("requeue %s: %w", id, err)
	}
	if item.HasRecord() && q.records != nil {
		if err := q.records.MarkSyncFailed(ctx, item.RecordKind, item.RecordID, false); err != nil {
			return item, fmt.Errorf("clear sync failed: %w", err)
		}
	}
	q.metrics.ItemEnqueued(item.Priority)
	if q.online() {
		q.Schedule()
	}
	return item, nil
}

// Draining reports whether a drain is in progress.
func (q *SyncQueue) Draining() bool {
	return q.draining.Load()
}

// Close stops scheduling, cancels background drains and waits for them.
func (q *SyncQueue) Close() {
	q.schedMu.Lock()
	q.closed = true
	q.schedMu.Unlock()

	q.cancel()
	q.wg.Wait()
}
