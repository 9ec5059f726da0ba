package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
	"github.com/bft-labs/offlinesync/internal/ports"
)

const recordColumns = "local_key, record_id, username, synced, sync_failed, created_at, updated_at, payload"

// Put upserts a record by (kind, id). CreatedAt is preserved on update;
// zero timestamps are filled with the current time.
func (s *Store) Put(ctx context.Context, rec *domain.Record) (int64, error) {
	table, err := tableFor(rec.Kind)
	if err != nil {
		return 0, err
	}
	if rec.ID == "" {
		return 0, fmt.Errorf("%w: record id is required", domain.ErrInvalidConfig)
	}
	db, err := s.conn.DB()
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	blob, err := encodePayload(rec.Payload)
	if err != nil {
		return 0, storageErr("put", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (record_id, username, synced, sync_failed, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			username = excluded.username,
			synced = excluded.synced,
			sync_failed = excluded.sync_failed,
			updated_at = excluded.updated_at,
			payload = excluded.payload
	`, table)
	if _, err := db.ExecContext(ctx, query,
		rec.ID, rec.Username, boolToInt(rec.Synced), boolToInt(rec.SyncFailed),
		toNanos(rec.CreatedAt), toNanos(rec.UpdatedAt), blob,
	); err != nil {
		return 0, storageErr("put", err)
	}

	var key, created int64
	if err := db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT local_key, created_at FROM %s WHERE record_id = ?", table), rec.ID,
	).Scan(&key, &created); err != nil {
		return 0, storageErr("put", err)
	}
	rec.LocalKey = key
	rec.CreatedAt = fromNanos(created)
	return key, nil
}

// Get returns a record by application id.
func (s *Store) Get(ctx context.Context, kind domain.RecordKind, id string) (domain.Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return domain.Record{}, err
	}
	db, err := s.conn.DB()
	if err != nil {
		return domain.Record{}, err
	}
	row := db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE record_id = ?", recordColumns, table), id)
	rec, err := scanRecord(row, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Record{}, storageErr("get", err)
	}
	return rec, nil
}

// Query returns records of one kind, newest first unless q.Ascending.
func (s *Store) Query(ctx context.Context, q ports.RecordQuery) ([]domain.Record, error) {
	table, err := tableFor(q.Kind)
	if err != nil {
		return nil, err
	}
	db, err := s.conn.DB()
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if q.Username != "" {
		where = append(where, "username = ?")
		args = append(args, q.Username)
	}
	if q.UnsyncedOnly {
		where = append(where, "synced = 0")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", recordColumns, table)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if q.Ascending {
		b.WriteString(" ORDER BY created_at ASC, local_key ASC")
	} else {
		b.WriteString(" ORDER BY created_at DESC, local_key DESC")
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, storageErr("query", err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows, q.Kind)
		if err != nil {
			return nil, storageErr("query", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query", err)
	}
	return out, nil
}

// MarkSynced sets synced and clears sync_failed. The payload is untouched.
func (s *Store) MarkSynced(ctx context.Context, kind domain.RecordKind, localKey int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	db, err := s.conn.DB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET synced = 1, sync_failed = 0 WHERE local_key = ?", table), localKey)
	return storageErr("mark synced", err)
}

// MarkSyncFailed sets or clears the sync_failed flag.
func (s *Store) MarkSyncFailed(ctx context.Context, kind domain.RecordKind, id string, failed bool) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	db, err := s.conn.DB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET sync_failed = ? WHERE record_id = ?", table), boolToInt(failed), id)
	return storageErr("mark sync failed", err)
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, kind domain.RecordKind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	db, err := s.conn.DB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE record_id = ?", table), id)
	return storageErr("delete", err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner, kind domain.RecordKind) (domain.Record, error) {
	var (
		rec              domain.Record
		synced, failed   int
		created, updated int64
		blob             []byte
	)
	if err := sc.Scan(&rec.LocalKey, &rec.ID, &rec.Username, &synced, &failed, &created, &updated, &blob); err != nil {
		return domain.Record{}, err
	}
	payload, err := decodePayload(blob)
	if err != nil {
		return domain.Record{}, err
	}
	rec.Kind = kind
	rec.Synced = synced != 0
	rec.SyncFailed = failed != 0
	rec.CreatedAt = fromNanos(created)
	rec.UpdatedAt = fromNanos(updated)
	rec.Payload = payload
	return rec, nil
}
