package ports

import (
	"context"
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
)

// RecordQuery selects records from one table.
type RecordQuery struct {
	Kind         domain.RecordKind
	Username     string
	UnsyncedOnly bool
	// Limit caps the result size; zero means no limit.
	Limit int
	// Ascending orders oldest first; the default is newest first.
	Ascending bool
}

// RecordStore persists application records on the device.
type RecordStore interface {
	// Put upserts a record by (kind, id) and returns its local key.
	Put(ctx context.Context, rec *domain.Record) (int64, error)

	// Get returns the record or domain.ErrNotFound.
	Get(ctx context.Context, kind domain.RecordKind, id string) (domain.Record, error)

	// Query returns matching records ordered by creation time.
	Query(ctx context.Context, q RecordQuery) ([]domain.Record, error)

	// MarkSynced flips the synced flag without touching the payload. Idempotent.
	MarkSynced(ctx context.Context, kind domain.RecordKind, localKey int64) error

	// MarkSyncFailed sets or clears the sync-failed flag.
	MarkSyncFailed(ctx context.Context, kind domain.RecordKind, id string, failed bool) error

	// Delete removes a record. Missing records are not an error.
	Delete(ctx context.Context, kind domain.RecordKind, id string) error

	// ClearAll wipes every table in a single transaction.
	ClearAll(ctx context.Context) error
}

// QueueStore persists pending mutations.
type QueueStore interface {
	// Enqueue persists a new item and assigns its sequence number.
	Enqueue(ctx context.Context, item *domain.QueueItem) error

	// Pending returns all items ordered by priority, creation time, then sequence.
	Pending(ctx context.Context) ([]domain.QueueItem, error)

	// PendingForRecord counts items that mirror the given record.
	PendingForRecord(ctx context.Context, kind domain.RecordKind, id string) (int, error)

	// UpdateAttempt records a failed attempt (retry count, last attempt, error).
	UpdateAttempt(ctx context.Context, item domain.QueueItem) error

	// DeleteItem removes a delivered item.
	DeleteItem(ctx context.Context, id string) error

	// DeadLetter moves an item out of the queue into the dead-letter table.
	DeadLetter(ctx context.Context, dl domain.DeadLetter) error

	// DeadLetters lists dead-lettered items, newest first.
	DeadLetters(ctx context.Context) ([]domain.DeadLetter, error)

	// Requeue moves a dead letter back into the queue with a reset retry count.
	Requeue(ctx context.Context, id string) (domain.QueueItem, error)

	// Stats counts pending items by priority and dead letters.
	Stats(ctx context.Context) (domain.QueueStats, error)
}

// ResponseCache stores GET response bodies keyed by endpoint shape.
type ResponseCache interface {
	PutCached(ctx context.Context, key string, body []byte) error
	// GetCached returns the body, or domain.ErrNotFound.
	GetCached(ctx context.Context, key string) ([]byte, time.Time, error)
}
