package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Acquire takes the queue lease for holder if it is free, expired, or
// already held by holder. A live lease held by another holder yields false.
func (s *Store) Acquire(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	acquired := false
	err := s.withTx(ctx, "lease acquire", func(tx *sql.Tx) error {
		now := time.Now().UnixNano()
		var (
			cur     string
			expires int64
		)
		err := tx.QueryRowContext(ctx,
			"SELECT holder, expires_at FROM sync_lease WHERE name = ?", leaseName).Scan(&cur, &expires)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		case cur != holder && expires > now:
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sync_lease (name, holder, expires_at) VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at`,
			leaseName, holder, now+ttl.Nanoseconds()); err != nil {
			return err
		}
		acquired = true
		return nil
	})
	return acquired, err
}

// Release drops the lease if holder still owns it.
func (s *Store) Release(ctx context.Context, holder string) error {
	db, err := s.conn.DB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, "DELETE FROM sync_lease WHERE name = ? AND holder = ?", leaseName, holder)
	return storageErr("lease release", err)
}
