// Package mysql implements the sinker.Sinker contract for MySQL on top of
// sinker.RDBEngine, supplying the database/sql-backed Executor and the
// ON DUPLICATE KEY UPDATE-aware Builder.
package mysql

import (
	"context"

	"github.com/rs/zerolog"

	extmysql "github.com/dtpipe/dtpipe/internal/extractor/mysql"
	"github.com/dtpipe/dtpipe/internal/rowdata"
	"github.com/dtpipe/dtpipe/internal/sinker"
	mysqlbuilder "github.com/dtpipe/dtpipe/internal/sqlbuilder/mysql"
	"github.com/dtpipe/dtpipe/internal/tablemeta"
)

// Sinker applies rows/DDL to a MySQL destination.
type Sinker struct {
	sinker.Base
	engine *sinker.RDBEngine
	id     string
}

// New creates a MySQL Sinker bound to db and meta.
func New(db *extmysql.DB, meta *tablemeta.Cache, batchSize int, id string, logger zerolog.Logger) *Sinker {
	return &Sinker{
		id: id,
		engine: &sinker.RDBEngine{
			Exec:      db,
			Builder:   mysqlbuilder.Builder{},
			Meta:      meta,
			BatchSize: batchSize,
			Logger:    logger.With().Str("component", "mysql-sinker").Str("id", id).Logger(),
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

// Close is idempotent; it does not close the shared DB handle, which the
// caller that built the sinker owns.
func (s *Sinker) Close(ctx context.Context) error {
	return s.CloseOnce(func() error { return nil })
}

var _ sinker.Sinker = (*Sinker)(nil)
