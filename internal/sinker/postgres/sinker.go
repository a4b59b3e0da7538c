// Package postgres implements the sinker.Sinker contract for PostgreSQL on
// top of sinker.RDBEngine, supplying the pgx-backed Executor and the
// Postgres upsert-aware Builder.
package postgres

import (
	"context"

	"github.com/rs/zerolog"

	extpg "github.com/dtpipe/dtpipe/internal/extractor/postgres"
	"github.com/dtpipe/dtpipe/internal/rowdata"
	"github.com/dtpipe/dtpipe/internal/sinker"
	pgbuilder "github.com/dtpipe/dtpipe/internal/sqlbuilder/postgres"
	"github.com/dtpipe/dtpipe/internal/tablemeta"
)

// Sinker applies rows/DDL to a Postgres destination.
type Sinker struct {
	sinker.Base
	engine *sinker.RDBEngine
	pool   *extpg.Pool
	id     string
}

// New creates a Postgres Sinker bound to pool and meta.
func New(pool *extpg.Pool, meta *tablemeta.Cache, batchSize int, id string, logger zerolog.Logger) *Sinker {
	return &Sinker{
		pool: pool,
		id:   id,
		engine: &sinker.RDBEngine{
			Exec:      pool,
			Builder:   pgbuilder.Builder{},
			Meta:      meta,
			BatchSize: batchSize,
			Logger:    logger.With().Str("component", "postgres-sinker").Str("id", id).Logger(),
		},
	}
}

// SinkDML implements sinker.Sinker.
func (s *Sinker) SinkDML(ctx context.Context, rows []rowdata.RowData, batch bool) error {
	return s.engine.SinkDML(ctx, rows, batch)
}

// SinkDDL implements sinker.Sinker.
func (s *Sinker) SinkDDL(ctx context.Context, ddls []rowdata.DdlData, batch bool) error {
	return s.engine.SinkDDL(ctx, ddls, batch)
}

// ID implements sinker.Sinker, overriding the Base no-op default.
func (s *Sinker) ID() string { return s.id }

// Close is idempotent; it does not close the shared pool, which the
// caller that built the sinker owns.
func (s *Sinker) Close(ctx context.Context) error {
	return s.CloseOnce(func() error { return nil })
}

var _ sinker.Sinker = (*Sinker)(nil)
