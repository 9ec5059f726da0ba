package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bft-labs/offlinesync/internal/domain"
	"github.com/bft-labs/offlinesync/internal/ports"
)

var (
	_ ports.RecordStore   = (*Store)(nil)
	_ ports.QueueStore    = (*Store)(nil)
	_ ports.ResponseCache = (*Store)(nil)
	_ ports.Lease         = (*Store)(nil)
)

// leaseName is the single lease row guarding the sync queue.
const leaseName = "sync_queue"

// Store implements the durable store ports on a SQLite Connection.
type Store struct {
	conn *Connection
}

// NewStore wraps an open (or later opened) connection.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

// Open creates a connection at path, opens it, and returns the store.
func Open(path string) (*Store, error) {
	conn, err := NewConnection(path)
	if err != nil {
		return nil, err
	}
	if err := conn.Open(); err != nil {
		return nil, storageErr("open", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.conn.Path()
}

// Version returns the applied schema version.
func (s *Store) Version(ctx context.Context) (int, error) {
	db, err := s.conn.DB()
	if err != nil {
		return 0, err
	}
	v, err := currentVersion(db)
	if err != nil {
		return 0, storageErr("version", err)
	}
	return v, nil
}

// withTx runs fn inside a transaction, committing on success. fn must use
// tx exclusively: the pool holds a single connection.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	db, err := s.conn.DB()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return storageErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op, err)
	}
	return nil
}

// ClearAll wipes records, cache, queue, dead letters and the lease in one
// transaction. Used on logout.
func (s *Store) ClearAll(ctx context.Context) error {
	tables := []string{
		domain.KindAssessment.Table(),
		domain.KindJournal.Table(),
		domain.KindSettings.Table(),
		"questions_cache",
		"sync_queue",
		"dead_letters",
		"sync_lease",
	}
	return s.withTx(ctx, "clear", func(tx *sql.Tx) error {
		for _, t := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("clear %s: %w", t, err)
			}
		}
		return nil
	})
}

func tableFor(kind domain.RecordKind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown record kind %q", domain.ErrInvalidConfig, kind)
	}
	return kind.Table(), nil
}
