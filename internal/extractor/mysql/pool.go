// Package mysql implements the MySQL dialect: a keyset-paginated snapshot
// extractor and system-catalog metadata fetcher via database/sql plus
// github.com/go-sql-driver/mysql. The CDC extractor is contract-only, per
// the core spec's "out of deep scope" instruction for CDC extractors.
package mysql

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
)

// DB wraps a database/sql.DB as the extractor's data source.
type DB struct {
	db *sql.DB
}

// Open dials a MySQL DSN (as accepted by go-sql-driver/mysql).
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: db}, nil
}

// NewDB wraps an already-open *sql.DB.
func NewDB(db *sql.DB) *DB { return &DB{db: db} }

// Exec implements sinker.Executor.
func (d *DB) Exec(ctx context.Context, query string, args []any) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Raw exposes the underlying *sql.DB for SELECT queries.
func (d *DB) Raw() *sql.DB { return d.db }

// Close closes the underlying connection pool.
func (d *DB) Close() error { return d.db.Close() }
