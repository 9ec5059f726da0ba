package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bft-labs/offlinesync/internal/domain"
	"github.com/bft-labs/offlinesync/internal/ports"
)

var _ DeliveryHook = (*Reconciler)(nil)

// Reconciler owns writes to durable records that race with delivery. Local
// saves and post-delivery settlement are serialized so a record is never
// marked synced over an edit that has not been sent yet.
//
// Direct sends are tracked per record while in flight. At most one direct
// send per record is outstanding; later edits queue behind it.
type Reconciler struct {
	mu       sync.Mutex
	records  ports.RecordStore
	queue    ports.QueueStore
	resolver *Resolver
	logger   ports.Logger
	inflight map[recordKey]int
}

type recordKey struct {
	kind domain.RecordKind
	id   string
}

// NewReconciler creates a reconciler.
func NewReconciler(records ports.RecordStore, queue ports.QueueStore, resolver *Resolver, logger ports.Logger) *Reconciler {
	if resolver == nil {
		resolver = NewResolver(0)
	}
	return &Reconciler{
		records:  records,
		queue:    queue,
		resolver: resolver,
		logger:   scoped(logger, "reconciler"),
		inflight: make(map[recordKey]int),
	}
}

// SaveLocal writes a local edit as unsynced. enqueue, if non-nil, runs under
// the same lock so the record and its queue item appear together.
func (r *Reconciler) SaveLocal(ctx context.Context, rec *domain.Record, enqueue func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.Synced = false
	rec.SyncFailed = false
	if _, err := r.records.Put(ctx, rec); err != nil {
		return err
	}
	if enqueue != nil {
		return enqueue()
	}
	return nil
}

// ClaimSend reports whether the record may be sent directly: nothing for it
// is queued or in flight. A successful claim must be released with exactly
// one of SettleSent, FailSent or RequeueSent. Call it only from within a
// SaveLocal or Locked callback.
func (r *Reconciler) ClaimSend(ctx context.Context, kind domain.RecordKind, id string) (bool, error) {
	busy, err := r.busy(ctx, kind, id)
	if err != nil || busy {
		return false, err
	}
	r.inflight[recordKey{kind, id}]++
	return true, nil
}

func (r *Reconciler) release(kind domain.RecordKind, id string) {
	key := recordKey{kind, id}
	if r.inflight[key] <= 1 {
		delete(r.inflight, key)
		return
	}
	r.inflight[key]--
}

// busy reports whether a newer write for the record is queued or in flight.
func (r *Reconciler) busy(ctx context.Context, kind domain.RecordKind, id string) (bool, error) {
	if r.inflight[recordKey{kind, id}] > 0 {
		return true, nil
	}
	pending, err := r.queue.PendingForRecord(ctx, kind, id)
	if err != nil {
		return false, fmt.Errorf("count pending: %w", err)
	}
	return pending > 0, nil
}

// SettleSent releases a claimed send that the server accepted and settles
// the record with the echo.
func (r *Reconciler) SettleSent(ctx context.Context, kind domain.RecordKind, id string, echo []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.release(kind, id)
	return r.settleLocked(ctx, kind, id, echo)
}

// FailSent releases a claimed send the server rejected. The record is
// flagged unless a newer edit is already queued.
func (r *Reconciler) FailSent(ctx context.Context, kind domain.RecordKind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.release(kind, id)
	if busy, err := r.busy(ctx, kind, id); err != nil || busy {
		return err
	}
	return r.records.MarkSyncFailed(ctx, kind, id, true)
}

// RequeueSent releases a claimed send that failed in transit and runs
// enqueue. When a newer edit is already queued it carries the record and
// enqueue is skipped; queued reports which happened.
func (r *Reconciler) RequeueSent(ctx context.Context, kind domain.RecordKind, id string, enqueue func() error) (queued bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.release(kind, id)
	busy, err := r.busy(ctx, kind, id)
	if err != nil {
		return false, err
	}
	if busy {
		return false, nil
	}
	return true, enqueue()
}

// Locked runs fn under the reconciler lock.
func (r *Reconciler) Locked(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn()
}

// Delivered implements DeliveryHook.
func (r *Reconciler) Delivered(ctx context.Context, item domain.QueueItem, resp *ports.Response) error {
	if !item.HasRecord() || item.Method == http.MethodDelete {
		return nil
	}
	var body []byte
	if resp != nil {
		body = resp.Body
	}
	return r.Settle(ctx, item.RecordKind, item.RecordID, body)
}

// Settle records a confirmed write of the record. When no further mutation
// for it is queued or in flight, the server echo (if any) is reconciled into the local
// copy and the record is marked synced.
func (r *Reconciler) Settle(ctx context.Context, kind domain.RecordKind, id string, echo []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settleLocked(ctx, kind, id, echo)
}

func (r *Reconciler) settleLocked(ctx context.Context, kind domain.RecordKind, id string, echo []byte) error {
	busy, err := r.busy(ctx, kind, id)
	if err != nil || busy {
		return err
	}

	local, err := r.records.Get(ctx, kind, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	remote, ok, err := DecodeRemoteRecord(kind, echo)
	if err != nil {
		r.logger.Debug("ignoring undecodable echo", ports.String("record_id", id), ports.Err(err))
		ok = false
	}
	if !ok || (remote.ID != "" && remote.ID != local.ID) {
		return r.records.MarkSynced(ctx, kind, local.LocalKey)
	}

	res := r.resolver.Resolve(domain.Conflict{Local: local, Remote: remote})
	local.Payload = res.Payload
	local.UpdatedAt = res.UpdatedAt
	local.Synced = true
	local.SyncFailed = false
	if _, err := r.records.Put(ctx, &local); err != nil {
		return err
	}
	r.logger.Debug("record settled",
		ports.String("kind", string(kind)),
		ports.String("record_id", id),
		ports.String("resolution", string(res.Resolution)),
	)
	return nil
}

// Apply reconciles a freshly fetched remote record into the store and
// returns the stored record and the resolution. A result that is not a
// remote win leaves the record unsynced; needsPush reports that no queued
// mutation will carry it to the server.
func (r *Reconciler) Apply(ctx context.Context, remote domain.Record) (stored domain.Record, res domain.Resolved, needsPush bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	local, err := r.records.Get(ctx, remote.Kind, remote.ID)
	if errors.Is(err, domain.ErrNotFound) {
		stored = remote.Clone()
		stored.Synced = true
		if _, err := r.records.Put(ctx, &stored); err != nil {
			return domain.Record{}, domain.Resolved{}, false, err
		}
		return stored, domain.Resolved{
			Payload:    stored.Payload,
			UpdatedAt:  stored.UpdatedAt,
			Resolution: domain.ResolutionRemote,
		}, false, nil
	}
	if err != nil {
		return domain.Record{}, domain.Resolved{}, false, err
	}

	busy, err := r.busy(ctx, remote.Kind, remote.ID)
	if err != nil {
		return domain.Record{}, domain.Resolved{}, false, err
	}

	res = r.resolver.Resolve(domain.Conflict{Local: local, Remote: remote})
	stored = local
	stored.Payload = res.Payload
	stored.UpdatedAt = res.UpdatedAt
	if res.Resolution == domain.ResolutionRemote {
		stored.Synced = !busy
		stored.SyncFailed = false
	} else {
		stored.Synced = false
		needsPush = !busy
	}
	if _, err := r.records.Put(ctx, &stored); err != nil {
		return domain.Record{}, domain.Resolved{}, false, err
	}
	return stored, res, needsPush, nil
}
