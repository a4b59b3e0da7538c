package mysql

import (
	"context"
	"io"

	"github.com/dtpipe/dtpipe/internal/rowdata"
)

// CDCSource is a contract-only placeholder satisfying extractor.CDCSource
// for MySQL. Wiring a full binlog reader (e.g. via go-mysql-org/go-mysql's
// replication package) is out of this core's specified scope — the engine
// depends only on the CDC extractor's emitted-item contract, which this
// stub documents but does not implement.
type CDCSource struct{}

// Next always reports permanent EOF: callers must not construct a MySQL
// CDC pipeline expecting streaming changes from this stub.
func (CDCSource) Next(ctx context.Context) (rowdata.DtItem, error) {
	return rowdata.DtItem{}, io.EOF
}

// ConfirmPosition is a no-op.
func (CDCSource) ConfirmPosition(ctx context.Context, pos rowdata.Position) error { return nil }
