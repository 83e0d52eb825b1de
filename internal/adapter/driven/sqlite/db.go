package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB provides dual reader/writer database connections with WAL mode enabled.
// The writer connection is limited to a single connection to avoid "database is locked" errors.
// The reader connection pool allows up to 4 concurrent readers.
//
// Stores issue statements through the exec/query helpers so that every query
// is attributed to the QueryCounter tracked on the request context. The writer
// plays the primary role and the reader pool the replica role.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// NewDB creates a new dual-connection SQLite database with WAL mode, busy timeout,
// synchronous NORMAL, foreign keys enabled, and a 64MB cache.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		dbPath,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	if err := writer.PingContext(ctx); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("ping writer: %w", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)

	if err := reader.PingContext(ctx); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("ping reader: %w", err)
	}

	return &DB{
		Writer: writer,
		Reader: reader,
		path:   dbPath,
	}, nil
}

// Close closes both reader and writer connections. Returns the first error encountered.
func (db *DB) Close() error {
	var firstErr error

	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}

	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}

// exec runs a write statement on the writer connection.
func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := db.Writer.ExecContext(ctx, query, args...)
	recordQuery(ctx, rolePrimary, true, time.Since(start))
	return result, err
}

// writeQueryRow runs a write statement with a RETURNING clause on the writer connection.
func (db *DB) writeQueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := db.Writer.QueryRowContext(ctx, query, args...)
	recordQuery(ctx, rolePrimary, true, time.Since(start))
	return row
}

// query runs a read statement on the reader pool.
func (db *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := db.Reader.QueryContext(ctx, query, args...)
	recordQuery(ctx, roleReplica, false, time.Since(start))
	return rows, err
}

// queryRow runs a single-row read statement on the reader pool.
func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := db.Reader.QueryRowContext(ctx, query, args...)
	recordQuery(ctx, roleReplica, false, time.Since(start))
	return row
}

// txn is a write transaction whose statements are counted like exec.
type txn struct {
	tx *sql.Tx
}

func (t txn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := t.tx.ExecContext(ctx, query, args...)
	recordQuery(ctx, rolePrimary, true, time.Since(start))
	return result, err
}

// inTx runs fn inside a writer transaction, committing when fn returns nil.
func (db *DB) inTx(ctx context.Context, fn func(t txn) error) error {
	tx, err := db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	if err := fn(txn{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
