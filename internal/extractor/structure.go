package extractor

import (
	"context"

	"github.com/dtpipe/dtpipe/internal/engineerr"
	"github.com/dtpipe/dtpipe/internal/queue"
	"github.com/dtpipe/dtpipe/internal/rowdata"
	"github.com/dtpipe/dtpipe/internal/sqlbuilder"
)

// StructureExtractor emits one database-level Ddl item followed by one
// per table, in that order: database -> tables.
type StructureExtractor struct {
	Base
	Fetcher sqlbuilder.Fetcher
	Schema  string
}

// Extract implements Extractor.
func (e *StructureExtractor) Extract(ctx context.Context, q *queue.Queue) error {
	dbStmt, err := e.Fetcher.GetCreateDatabaseStatement(e.Schema)
	if err != nil {
		return engineerr.Wrap(engineerr.KindExtractIo, e.Schema, "", err)
	}
	if err := push(ctx, q, e.Schema, "", dbStmt); err != nil {
		return err
	}

	tableStmts, err := e.Fetcher.GetCreateTableStatements(e.Schema, "")
	if err != nil {
		return engineerr.Wrap(engineerr.KindExtractIo, e.Schema, "", err)
	}
	for _, stmt := range tableStmts {
		if err := push(ctx, q, e.Schema, "", stmt); err != nil {
			return err
		}
	}
	return nil
}

func push(ctx context.Context, q *queue.Queue, schema, table string, stmt rowdata.Statement) error {
	ddl := rowdata.DdlData{
		Schema:    schema,
		Table:     table,
		Statement: &stmt,
		DdlType:   stmt.Kind,
	}
	if err := ddl.Validate(); err != nil {
		return engineerr.Wrap(engineerr.KindEncoding, schema, table, err)
	}
	if err := q.Push(ctx, rowdata.NewDdlItem(ddl)); err != nil {
		return engineerr.Wrap(engineerr.KindCancelled, schema, table, err)
	}
	return nil
}
