// Package sqlite provides the SQLite-backed contract store.
package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/clarity/internal/sqlitemigrate"
	"go.dedis.ch/clarity/logging"
	"go.dedis.ch/clarity/storage"
	"go.dedis.ch/clarity/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Receipt status values.
const (
	StatusCommitted = "committed"
	StatusAborted   = "aborted"
	StatusError     = "error"
	// StatusReadOnly marks a read-only function that returned a plain value.
	StatusReadOnly = "read-only"
)

// Receipt records one `execute` invocation against the store.
type Receipt struct {
	TxID        string
	Contract    string
	Function    string
	Sender      string
	Status      string
	Result      string
	BlockHeight uint64
	CreatedAt   time.Time
}

// Store implements storage.KV on a SQLite file. All statements run on one
// pinned connection so that SQL savepoints nest the way KV savepoints do.
type Store struct {
	logger zerolog.Logger

	// ctx bounds every statement issued on the pinned connection.
	ctx   context.Context
	sqlDB *sql.DB
	conn  *sql.Conn
	depth int
}

var _ storage.KV = (*Store)(nil)

// Open opens (creating if needed) a SQLite store and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	sqlDB, err := sql.Open("sqlite", cleanPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pin sqlite connection: %w", err)
	}

	s := &Store{ctx: ctx, sqlDB: sqlDB, conn: conn}
	s.logger = logging.RootLogger.With().Str("Store", cleanPath).Logger()
	s.logger.Debug().Msg("store opened")
	return s, nil
}

// Close rolls back any savepoint left open and closes the handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	for s.depth > 0 {
		if err := s.Rollback(); err != nil {
			s.logger.Warn().Err(err).Msg("rollback on close")
			break
		}
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	return s.sqlDB.Close()
}

func (s *Store) Get(key string) ([]byte, error) {
	var value []byte
	err := s.conn.QueryRowContext(s.ctx, "SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrKeyNotFound
		}
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) Put(key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.conn.ExecContext(s.ctx,
		`INSERT INTO kv_store (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func (s *Store) Del(key string) error {
	res, err := s.conn.ExecContext(s.ctx, "DELETE FROM kv_store WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("del %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("del %q: %w", key, err)
	}
	if n == 0 {
		return storage.ErrKeyNotFound
	}
	return nil
}

// Hash digests the state in key order, matching storage.SimpleKV.
func (s *Store) Hash() (string, error) {
	rows, err := s.conn.QueryContext(s.ctx, "SELECT key, value FROM kv_store ORDER BY key")
	if err != nil {
		return "", fmt.Errorf("hash state: %w", err)
	}
	defer rows.Close()

	h := sha256.New()
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return "", fmt.Errorf("hash state: %w", err)
		}
		storage.HashEntry(h, key, value)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("hash state: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Store) Begin() error {
	name := savepointName(s.depth + 1)
	if _, err := s.conn.ExecContext(s.ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("begin %s: %w", name, err)
	}
	s.depth++
	return nil
}

// Commit releases the innermost savepoint. Releasing the outermost one
// commits the enclosing SQLite transaction.
func (s *Store) Commit() error {
	if s.depth == 0 {
		return storage.ErrNoSavepoint
	}
	name := savepointName(s.depth)
	if _, err := s.conn.ExecContext(s.ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	s.depth--
	return nil
}

func (s *Store) Rollback() error {
	if s.depth == 0 {
		return storage.ErrNoSavepoint
	}
	name := savepointName(s.depth)
	if _, err := s.conn.ExecContext(s.ctx, "ROLLBACK TO "+name); err != nil {
		return fmt.Errorf("rollback %s: %w", name, err)
	}
	if _, err := s.conn.ExecContext(s.ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	s.depth--
	return nil
}

func (s *Store) Depth() int {
	return s.depth
}

func savepointName(depth int) string {
	return fmt.Sprintf("sp_%d", depth)
}

// RecordReceipt stores r, assigning a transaction id when r has none.
func (s *Store) RecordReceipt(r Receipt) (Receipt, error) {
	if strings.TrimSpace(r.Contract) == "" {
		return Receipt{}, fmt.Errorf("contract name is required")
	}
	if strings.TrimSpace(r.Function) == "" {
		return Receipt{}, fmt.Errorf("function name is required")
	}
	switch r.Status {
	case StatusCommitted, StatusAborted, StatusError, StatusReadOnly:
	default:
		return Receipt{}, fmt.Errorf("unknown receipt status %q", r.Status)
	}
	if r.TxID == "" {
		r.TxID = xid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn.ExecContext(s.ctx,
		`INSERT INTO receipts (
		   tx_id,
		   contract_name,
		   function_name,
		   sender,
		   status,
		   result,
		   block_height,
		   created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TxID,
		r.Contract,
		r.Function,
		r.Sender,
		r.Status,
		r.Result,
		int64(r.BlockHeight),
		r.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return Receipt{}, fmt.Errorf("record receipt: %w", err)
	}
	s.logger.Debug().Str("tx", r.TxID).Str("status", r.Status).Msg("receipt recorded")
	return r, nil
}

// Receipts returns recorded receipts, oldest first.
func (s *Store) Receipts() ([]Receipt, error) {
	rows, err := s.conn.QueryContext(s.ctx,
		`SELECT tx_id, contract_name, function_name, sender, status, result, block_height, created_at
		 FROM receipts ORDER BY created_at, tx_id`)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		var r Receipt
		var height, createdAt int64
		if err := rows.Scan(&r.TxID, &r.Contract, &r.Function, &r.Sender, &r.Status, &r.Result, &height, &createdAt); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		r.BlockHeight = uint64(height)
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return out, nil
}
