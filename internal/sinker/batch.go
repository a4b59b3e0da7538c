package sinker

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dtpipe/dtpipe/internal/engineerr"
	"github.com/dtpipe/dtpipe/internal/rowdata"
	"github.com/dtpipe/dtpipe/internal/sqlbuilder"
	"github.com/dtpipe/dtpipe/internal/tablemeta"
)

// Executor runs one statement against the destination and reports rows
// affected, abstracting over pgx's and database/sql's distinct APIs.
type Executor interface {
	Exec(ctx context.Context, sql string, args []any) (rowsAffected int64, err error)
}

// RDBEngine is the dialect-agnostic batch/serial-fallback core shared by
// every RDB sinker: batch insert/delete with chunking, re-running a
// rejected batch serially, and upsert via the builder contract.
type RDBEngine struct {
	Exec      Executor
	Builder   sqlbuilder.Builder
	Meta      *tablemeta.Cache
	BatchSize int
	Logger    zerolog.Logger
}

// SinkDML implements the sinker contract's sink_dml(rows, batch) semantics.
func (e *RDBEngine) SinkDML(ctx context.Context, rows []rowdata.RowData, batch bool) error {
	if len(rows) == 0 {
		return nil
	}
	if !batch {
		return e.serialSink(ctx, rows)
	}

	op, uniform := uniformOp(rows)
	if !uniform {
		return e.serialSink(ctx, rows)
	}

	switch op {
	case rowdata.OpInsert:
		return e.batchInsert(ctx, rows)
	case rowdata.OpDelete:
		return e.batchDelete(ctx, rows)
	default:
		return e.serialSink(ctx, rows)
	}
}

func uniformOp(rows []rowdata.RowData) (rowdata.RowOp, bool) {
	op := rows[0].Op
	for _, r := range rows[1:] {
		if r.Op != op {
			return op, false
		}
	}
	return op, true
}

// serialSink applies rows one at a time; a failure on any row is fatal for
// the pipeline (no silent drop).
func (e *RDBEngine) serialSink(ctx context.Context, rows []rowdata.RowData) error {
	for _, row := range rows {
		meta, err := e.Meta.Get(row.Schema, row.Table)
		if err != nil {
			return err
		}
		var sql string
		var binds []sqlbuilder.Bind
		if row.Op == rowdata.OpInsert {
			sql, binds = e.Builder.InsertQuery(meta, row)
		} else {
			sql, binds = e.Builder.QueryInfo(meta, row)
		}
		if _, err := e.Exec.Exec(ctx, sql, toArgs(binds)); err != nil {
			return engineerr.Wrap(engineerr.KindSinkExecute, row.Schema, row.Table, err)
		}
	}
	return nil
}

// batchInsert splits rows into BatchSize chunks and emits one multi-VALUES
// upsert statement per chunk. A chunk failure is logged and that exact
// chunk is re-run serially so individual offending rows surface their own
// error while valid rows still land; a serial failure escalates.
func (e *RDBEngine) batchInsert(ctx context.Context, rows []rowdata.RowData) error {
	meta, err := e.Meta.Get(rows[0].Schema, rows[0].Table)
	if err != nil {
		return err
	}
	size := e.chunkSize()
	for start := 0; start < len(rows); start += size {
		n := size
		if start+n > len(rows) {
			n = len(rows) - start
		}
		sql, binds := e.Builder.BatchInsertQuery(meta, rows, start, n)
		if _, execErr := e.Exec.Exec(ctx, sql, toArgs(binds)); execErr != nil {
			e.Logger.Error().Err(execErr).Str("table", meta.QualifiedName()).
				Msg("batch insert failed, falling back to serial insert for this chunk")
			if err := e.serialSink(ctx, rows[start:start+n]); err != nil {
				return err
			}
		}
	}
	return nil
}

// batchDelete splits rows into BatchSize chunks and emits one
// "WHERE (id_cols) IN (...)" statement per chunk.
func (e *RDBEngine) batchDelete(ctx context.Context, rows []rowdata.RowData) error {
	meta, err := e.Meta.Get(rows[0].Schema, rows[0].Table)
	if err != nil {
		return err
	}
	size := e.chunkSize()
	for start := 0; start < len(rows); start += size {
		n := size
		if start+n > len(rows) {
			n = len(rows) - start
		}
		sql, binds := e.Builder.BatchDeleteQuery(meta, rows, start, n)
		if _, execErr := e.Exec.Exec(ctx, sql, toArgs(binds)); execErr != nil {
			e.Logger.Error().Err(execErr).Str("table", meta.QualifiedName()).
				Msg("batch delete failed, falling back to serial delete for this chunk")
			if err := e.serialSink(ctx, rows[start:start+n]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *RDBEngine) chunkSize() int {
	if e.BatchSize <= 0 {
		return 200
	}
	return e.BatchSize
}

// SinkDDL executes ddl.Query verbatim. Only the bookkeeping Schema/Table
// fields arrive routed (the orchestrator's routeDdl rewrites those before
// calling in); SinkDDL does not touch the metadata cache, so cached
// TbMeta for an altered table is not refreshed. The statement text itself
// still names the source-side
// schema.table, so a configured rename route does not rewrite what
// actually reaches the destination database. Source and destination must
// share unqualified object names whenever a schema/table rename route is
// in effect.
func (e *RDBEngine) SinkDDL(ctx context.Context, ddls []rowdata.DdlData, batch bool) error {
	for _, ddl := range ddls {
		query := ddl.Query
		if query == "" && ddl.Statement != nil {
			query = ddl.Statement.Text
		}
		if query == "" {
			continue
		}
		if _, err := e.Exec.Exec(ctx, query, nil); err != nil {
			return engineerr.Wrap(engineerr.KindSinkExecute, ddl.Schema, ddl.Table, err)
		}
	}
	return nil
}

func toArgs(binds []sqlbuilder.Bind) []any {
	out := make([]any, len(binds))
	for i, b := range binds {
		out[i] = Bind(b.Value)
	}
	return out
}
