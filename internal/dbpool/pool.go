// Package dbpool opens a *sql.DB for a named dialect and exposes the
// DBTX interface every nsdriver method accepts. Connection pooling
// itself is left entirely to database/sql; this package does not add a
// second pooling layer.
package dbpool

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect names accepted by Open.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx. Every nsdriver method
// takes one of these rather than assuming an ambient transaction,
// making the already-open-transaction contract explicit in the type
// system.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ DBTX = (*sql.DB)(nil)
var _ DBTX = (*sql.Tx)(nil)

// Open opens a connection pool for dialect against dsn. dialect must be
// DialectPostgres or DialectSQLite; any other value is an error (unlike
// the driver's own statement-set resolution, which silently falls back
// to the default, pool selection has no meaningful fallback since the
// wire protocol differs entirely).
func Open(dialect, dsn string) (*sql.DB, error) {
	var driverName string
	switch dialect {
	case DialectPostgres:
		driverName = "postgres"
	case DialectSQLite:
		driverName = "sqlite3"
	default:
		return nil, fmt.Errorf("dbpool: unknown dialect %q", dialect)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("dbpool: opening %s: %w", dialect, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbpool: pinging %s: %w", dialect, err)
	}
	return db, nil
}

// WithTx runs fn inside a transaction, committing on success and
// rolling back if fn returns an error or panics: the outer
// transactional boundary around each logical operation, for callers
// that don't manage their own transactions.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbpool: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("dbpool: commit: %w", err)
	}
	return nil
}
