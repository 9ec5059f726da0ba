package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bft-labs/offlinesync/internal/domain"
)

// PutCached stores a GET response body under key, replacing any previous one.
func (s *Store) PutCached(ctx context.Context, key string, body []byte) error {
	db, err := s.conn.DB()
	if err != nil {
		return err
	}
	if body == nil {
		body = []byte{}
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO questions_cache (cache_key, body, cached_at) VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET body = excluded.body, cached_at = excluded.cached_at`,
		key, compressBody(body), time.Now().UnixNano())
	return storageErr("cache put", err)
}

// GetCached returns a cached body and the time it was stored.
func (s *Store) GetCached(ctx context.Context, key string) ([]byte, time.Time, error) {
	db, err := s.conn.DB()
	if err != nil {
		return nil, time.Time{}, err
	}
	var (
		blob []byte
		at   int64
	)
	err = db.QueryRowContext(ctx,
		"SELECT body, cached_at FROM questions_cache WHERE cache_key = ?", key).Scan(&blob, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, domain.ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, storageErr("cache get", err)
	}
	body, err := decompressBody(blob)
	if err != nil {
		return nil, time.Time{}, storageErr("cache get", err)
	}
	if body == nil {
		body = []byte{}
	}
	return body, fromNanos(at), nil
}
