package sqlite

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/snappy"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/bft-labs/offlinesync/internal/domain"
)

// encodePayload serializes a record payload as snappy-compressed JSON.
func encodePayload(p map[string]any) ([]byte, error) {
	if p == nil {
		p = map[string]any{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return snappy.Encode(nil, raw), nil
}

func decodePayload(blob []byte) (map[string]any, error) {
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	var p map[string]any
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	if p == nil {
		p = map[string]any{}
	}
	return p, nil
}

// compressBody compresses a queue body; nil stays nil.
func compressBody(b []byte) []byte {
	if b == nil {
		return nil
	}
	return snappy.Encode(nil, b)
}

func decompressBody(b []byte) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	out, err := snappy.Decode(nil, b)
	if err != nil {
		return nil, fmt.Errorf("decompress body: %w", err)
	}
	return out, nil
}

func encodeHeaders(h map[string]string) (string, error) {
	if len(h) == 0 {
		return "", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("marshal headers: %w", err)
	}
	return string(b), nil
}

func decodeHeaders(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	var h map[string]string
	if err := json.Unmarshal([]byte(s), &h); err != nil {
		return nil, fmt.Errorf("unmarshal headers: %w", err)
	}
	return h, nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// storageErr wraps a driver error as a domain.StorageError, flagging
// SQLITE_FULL as quota exhaustion.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotOpen) || errors.Is(err, domain.ErrNotFound) {
		return err
	}
	var se *domain.StorageError
	if errors.As(err, &se) {
		return err
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) && sqErr.Code == sqlite3.ErrFull {
		return &domain.StorageError{Op: op, Quota: true, Err: err}
	}
	return &domain.StorageError{Op: op, Err: err}
}
