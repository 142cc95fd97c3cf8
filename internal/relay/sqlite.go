package relay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/neutron-sync/neutron-sync/internal/nsync"
	"github.com/neutron-sync/neutron-sync/internal/relay/migrations"
)

// SQLiteStore is a persistent Store. Consume happens inside a single
// IMMEDIATE transaction, so the atomic get-and-delete contract holds even
// when several relay processes share the database file.
type SQLiteStore struct {
	db    *sql.DB
	clock nsync.Clock
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the relay database at dataDir/relay.db
// and migrates it to the latest schema.
func NewSQLiteStore(dataDir string, clock nsync.Clock) (*SQLiteStore, error) {
	// _txlock=immediate makes every transaction take the write lock up
	// front, so two consumers of the same code serialize instead of both
	// reading the row.
	path := filepath.Join(dataDir, "relay.db") + "?_txlock=immediate"
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating relay database: %w", err)
	}

	return &SQLiteStore{db: db, clock: clock}, nil
}

// Put stores a blob under code. Expired rows are purged opportunistically so
// the table does not grow without bound even if nothing ever retrieves.
func (s *SQLiteStore) Put(ctx context.Context, code string, blob []byte, ttl time.Duration) error {
	now := s.clock.Now()
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM transfers WHERE expires_at <= ?", now.Unix()); err != nil {
		return fmt.Errorf("purging expired transfers: %w", err)
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO transfers (code, blob, created_at, expires_at) VALUES (?, ?, ?, ?)",
		code, blob, now.Unix(), now.Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("storing transfer %s: %w", code, err)
	}
	return nil
}

// GetAndDelete atomically fetches and deletes the blob for code. The row is
// deleted whether or not it had already expired; an expired row still yields
// ErrTransferNotFound.
func (s *SQLiteStore) GetAndDelete(ctx context.Context, code string) ([]byte, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var blob []byte
	var expiresAt int64
	err = tx.QueryRowContext(ctx,
		"SELECT blob, expires_at FROM transfers WHERE code = ?", code).Scan(&blob, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching transfer %s: %w", code, err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM transfers WHERE code = ?", code)
	if err != nil {
		return nil, fmt.Errorf("deleting transfer %s: %w", code, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("deleting transfer %s: %w", code, err)
	}
	if n == 0 {
		// Another consumer won the race between our read and our delete.
		return nil, ErrTransferNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing consume of %s: %w", code, err)
	}

	if !s.clock.Now().Before(time.Unix(expiresAt, 0)) {
		return nil, ErrTransferNotFound
	}
	return blob, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
