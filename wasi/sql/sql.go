// Package sql implements the relational capability over database/sql.
// The default driver is sqlite3.
package sql

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/augentic/yetti/env"
	"github.com/augentic/yetti/errors"
)

// Name is the capability name.
const Name = "wasi:sql/readwrite"

// Options configures the sql backend. DSN takes the form
// "driver://source"; a bare source implies sqlite3.
type Options struct {
	DSN string `env:"SQL_DSN" default:"sqlite3://:memory:"`
}

// DB wraps a connected database handle.
type DB struct {
	db *sql.DB
}

// Open connects with an explicit driver and source.
func Open(driver, source string) (*DB, error) {
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, errors.BackendUnavailable(Name, err)
	}
	return &DB{db: db}, nil
}

// Connect builds the handle from the environment.
func Connect(ctx context.Context) (*DB, error) {
	var opts Options
	if err := env.Bind(&opts); err != nil {
		return nil, err
	}
	return ConnectWith(ctx, opts)
}

// ConnectWith builds the handle using opts and verifies the connection.
func ConnectWith(ctx context.Context, opts Options) (*DB, error) {
	driver, source, ok := strings.Cut(opts.DSN, "://")
	if !ok {
		driver, source = "sqlite3", opts.DSN
	}
	db, err := Open(driver, source)
	if err != nil {
		return nil, err
	}
	if err := db.db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.BackendUnavailable(Name, err)
	}
	return db, nil
}

// Close releases the underlying pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Row is one result row keyed by column name.
type Row map[string]any

// Query runs a statement that returns rows.
func (d *DB) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Internal(errors.PhaseDispatch, "query", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Internal(errors.PhaseDispatch, "query columns", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Internal(errors.PhaseDispatch, "scan row", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			// []byte scans as raw bytes; surface text columns as strings.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(errors.PhaseDispatch, "iterate rows", err)
	}
	return out, nil
}

// Exec runs a statement that returns no rows. The result is the number
// of affected rows when the driver reports it.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Internal(errors.PhaseDispatch, "exec", err)
	}
	affected, err := res.RowsAffected()
	if err != nil && !stderrors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return affected, nil
}
