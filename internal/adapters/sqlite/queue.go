package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
)

const queueColumns = "seq, id, url, method, body, headers, priority, retry_count, created_at, last_attempt, error, record_kind, record_id"

// Enqueue persists a new queue item and fills in its sequence number.
func (s *Store) Enqueue(ctx context.Context, item *domain.QueueItem) error {
	db, err := s.conn.DB()
	if err != nil {
		return err
	}
	item.Priority = item.Priority.Normalize()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	headers, err := encodeHeaders(item.Headers)
	if err != nil {
		return storageErr("enqueue", err)
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO sync_queue (id, url, method, body, headers, priority, priority_rank,
			retry_count, created_at, last_attempt, error, record_kind, record_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.URL, item.Method, compressBody(item.Body), headers,
		string(item.Priority), item.Priority.Rank(), item.RetryCount,
		toNanos(item.CreatedAt), nullableNanos(item.LastAttempt), item.Error,
		string(item.RecordKind), item.RecordID,
	)
	if err != nil {
		return storageErr("enqueue", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return storageErr("enqueue", err)
	}
	item.Seq = seq
	return nil
}

// Pending returns every queued item in delivery order: priority, then
// creation time, then insertion sequence.
func (s *Store) Pending(ctx context.Context) ([]domain.QueueItem, error) {
	db, err := s.conn.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		"SELECT "+queueColumns+" FROM sync_queue ORDER BY priority_rank, created_at, seq")
	if err != nil {
		return nil, storageErr("pending", err)
	}
	defer rows.Close()

	var out []domain.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, storageErr("pending", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("pending", err)
	}
	return out, nil
}

// PendingForRecord counts queued items mirroring the given record.
func (s *Store) PendingForRecord(ctx context.Context, kind domain.RecordKind, id string) (int, error) {
	db, err := s.conn.DB()
	if err != nil {
		return 0, err
	}
	var n int
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sync_queue WHERE record_kind = ? AND record_id = ?",
		string(kind), id).Scan(&n)
	if err != nil {
		return 0, storageErr("pending for record", err)
	}
	return n, nil
}

// UpdateAttempt stores the retry bookkeeping of a failed attempt.
func (s *Store) UpdateAttempt(ctx context.Context, item domain.QueueItem) error {
	db, err := s.conn.DB()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		"UPDATE sync_queue SET retry_count = ?, last_attempt = ?, error = ? WHERE id = ?",
		item.RetryCount, nullableNanos(item.LastAttempt), item.Error, item.ID)
	if err != nil {
		return storageErr("update attempt", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteItem removes an item. Deleting a missing item is not an error.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	db, err := s.conn.DB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", id)
	return storageErr("delete item", err)
}

// DeadLetter moves an item from the queue to dead_letters atomically.
func (s *Store) DeadLetter(ctx context.Context, dl domain.DeadLetter) error {
	if dl.FailedAt.IsZero() {
		dl.FailedAt = time.Now().UTC()
	}
	it := dl.Item
	headers, err := encodeHeaders(it.Headers)
	if err != nil {
		return storageErr("dead letter", err)
	}
	return s.withTx(ctx, "dead letter", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO dead_letters (id, url, method, body, headers, priority,
				retry_count, created_at, last_attempt, error, record_kind, record_id,
				reason, status_code, failed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, it.URL, it.Method, compressBody(it.Body), headers, string(it.Priority.Normalize()),
			it.RetryCount, toNanos(it.CreatedAt), nullableNanos(it.LastAttempt), it.Error,
			string(it.RecordKind), it.RecordID, string(dl.Reason), dl.StatusCode, toNanos(dl.FailedAt),
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", it.ID)
		return err
	})
}

// DeadLetters lists dead letters, most recent failure first.
func (s *Store) DeadLetters(ctx context.Context) ([]domain.DeadLetter, error) {
	db, err := s.conn.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, url, method, body, headers, priority, retry_count, created_at,
			last_attempt, error, record_kind, record_id, reason, status_code, failed_at
		FROM dead_letters ORDER BY failed_at DESC, id`)
	if err != nil {
		return nil, storageErr("dead letters", err)
	}
	defer rows.Close()

	var out []domain.DeadLetter
	for rows.Next() {
		dl, err := scanDeadLetter(rows)
		if err != nil {
			return nil, storageErr("dead letters", err)
		}
		out = append(out, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("dead letters", err)
	}
	return out, nil
}

// Requeue moves a dead letter back to the queue with its retry count reset.
// The original creation time is kept so the item regains its queue position.
func (s *Store) Requeue(ctx context.Context, id string) (domain.QueueItem, error) {
	var item domain.QueueItem
	err := s.withTx(ctx, "requeue", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, url, method, body, headers, priority, retry_count, created_at,
				last_attempt, error, record_kind, record_id, reason, status_code, failed_at
			FROM dead_letters WHERE id = ?`, id)
		dl, err := scanDeadLetter(row)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		item = dl.Item
		item.RetryCount = 0
		item.LastAttempt = nil
		item.Error = ""

		headers, err := encodeHeaders(item.Headers)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO sync_queue (id, url, method, body, headers, priority, priority_rank,
				retry_count, created_at, last_attempt, error, record_kind, record_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, NULL, '', ?, ?)`,
			item.ID, item.URL, item.Method, compressBody(item.Body), headers,
			string(item.Priority), item.Priority.Rank(), toNanos(item.CreatedAt),
			string(item.RecordKind), item.RecordID,
		)
		if err != nil {
			return err
		}
		if item.Seq, err = res.LastInsertId(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM dead_letters WHERE id = ?", id)
		return err
	})
	if err != nil {
		return domain.QueueItem{}, err
	}
	return item, nil
}

// Stats counts pending items per priority and dead letters.
func (s *Store) Stats(ctx context.Context) (domain.QueueStats, error) {
	stats := domain.QueueStats{Pending: make(map[domain.Priority]int, len(domain.Priorities))}
	for _, p := range domain.Priorities {
		stats.Pending[p] = 0
	}
	db, err := s.conn.DB()
	if err != nil {
		return stats, err
	}
	rows, err := db.QueryContext(ctx, "SELECT priority, COUNT(*) FROM sync_queue GROUP BY priority")
	if err != nil {
		return stats, storageErr("stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p string
			n int
		)
		if err := rows.Scan(&p, &n); err != nil {
			return stats, storageErr("stats", err)
		}
		stats.Pending[domain.Priority(p).Normalize()] += n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return stats, storageErr("stats", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dead_letters").Scan(&stats.DeadLetters); err != nil {
		return stats, storageErr("stats", err)
	}
	return stats, nil
}

func nullableNanos(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UnixNano()
}

func scanQueueItem(sc scanner) (domain.QueueItem, error) {
	var (
		item     domain.QueueItem
		body     []byte
		headers  sql.NullString
		priority string
		created  int64
		last     sql.NullInt64
		kind     string
	)
	if err := sc.Scan(&item.Seq, &item.ID, &item.URL, &item.Method, &body, &headers, &priority,
		&item.RetryCount, &created, &last, &item.Error, &kind, &item.RecordID); err != nil {
		return domain.QueueItem{}, err
	}
	return fillItem(item, body, headers, priority, created, last, kind)
}

func scanDeadLetter(sc scanner) (domain.DeadLetter, error) {
	var (
		item     domain.QueueItem
		body     []byte
		headers  sql.NullString
		priority string
		created  int64
		last     sql.NullInt64
		kind     string
		reason   string
		status   int
		failed   int64
	)
	if err := sc.Scan(&item.ID, &item.URL, &item.Method, &body, &headers, &priority,
		&item.RetryCount, &created, &last, &item.Error, &kind, &item.RecordID,
		&reason, &status, &failed); err != nil {
		return domain.DeadLetter{}, err
	}
	item, err := fillItem(item, body, headers, priority, created, last, kind)
	if err != nil {
		return domain.DeadLetter{}, err
	}
	return domain.DeadLetter{
		Item:       item,
		FailedAt:   fromNanos(failed),
		Reason:     domain.DeadLetterReason(reason),
		StatusCode: status,
	}, nil
}

func fillItem(item domain.QueueItem, body []byte, headers sql.NullString, priority string, created int64, last sql.NullInt64, kind string) (domain.QueueItem, error) {
	var err error
	if item.Body, err = decompressBody(body); err != nil {
		return domain.QueueItem{}, err
	}
	if item.Headers, err = decodeHeaders(headers.String); err != nil {
		return domain.QueueItem{}, err
	}
	item.Priority = domain.Priority(priority).Normalize()
	item.CreatedAt = fromNanos(created)
	if last.Valid {
		t := fromNanos(last.Int64)
		item.LastAttempt = &t
	}
	item.RecordKind = domain.RecordKind(kind)
	return item, nil
}
