package extractor

import (
	"context"

	"github.com/dtpipe/dtpipe/internal/rowdata"
)

// CDCSource is the dialect-specific change stream an CDC extractor pulls
// from. It emits Row items tagged with a monotonic-within-one-source
// Position, Ddl items when schema changes, and Commit items at transaction
// boundaries. It signals EOF only on permanent disconnect; transient loss
// is error-bubbled (not swallowed as EOF) so the orchestrator can decide
// whether to retry the whole CDC extractor.
type CDCSource interface {
	// Next blocks until the next item is available, ctx is cancelled, or
	// the source is permanently exhausted (io.EOF).
	Next(ctx context.Context) (rowdata.DtItem, error)
	// ConfirmPosition acknowledges a position back to the source (e.g. a
	// replication slot confirmed-flush LSN), allowing it to reclaim
	// resources held for not-yet-confirmed events.
	ConfirmPosition(ctx context.Context, pos rowdata.Position) error
}
