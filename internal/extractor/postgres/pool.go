// Package postgres implements the PostgreSQL dialect: a keyset-paginated
// snapshot extractor, a logical-replication CDC extractor, and the
// system-catalog-backed table-metadata fetcher, all built on pgx/v5 and
// pgxpool for connection pooling.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps a pgxpool.Pool as the extractor's data source.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool wraps an already-connected pgxpool.Pool.
func NewPool(pool *pgxpool.Pool) *Pool { return &Pool{pool: pool} }

// Exec implements sinker.Executor.
func (p *Pool) Exec(ctx context.Context, sql string, args []any) (int64, error) {
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Raw exposes the underlying pool for queries the Executor contract
// doesn't cover (SELECT with result rows).
func (p *Pool) Raw() *pgxpool.Pool { return p.pool }
