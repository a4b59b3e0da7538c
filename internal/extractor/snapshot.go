package extractor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dtpipe/dtpipe/internal/engineerr"
	"github.com/dtpipe/dtpipe/internal/lifecycle"
	"github.com/dtpipe/dtpipe/internal/queue"
	"github.com/dtpipe/dtpipe/internal/rowdata"
	"github.com/dtpipe/dtpipe/internal/tablemeta"
)

// drainPollInterval is how often the extractor polls queue emptiness
// before setting the shutdown flag, matching the "poll with a small sleep"
// instruction from the sliced-scan design.
const drainPollInterval = time.Millisecond

// SliceSource issues the two sliced-scan SQL shapes for one table: the
// first slice (start == rowdata.None()) and every subsequent slice (start
// bound as the WHERE predicate). Each call returns at most sliceSize rows
// in order_col order; a result shorter than sliceSize is the dialect's own
// proof of exhaustion (LIMIT semantics), so the caller never needs to
// special-case the final partial page.
type SliceSource interface {
	FetchSlice(ctx context.Context, meta tablemeta.TbMeta, start rowdata.ColValue, sliceSize int) ([]rowdata.RowData, error)
}

// FullScanSource is the fallback path used when a table has no order_col:
// a single streaming cursor, memory-bounded only by the queue's own
// backpressure.
type FullScanSource interface {
	FetchAll(ctx context.Context, meta tablemeta.TbMeta, emit func(rowdata.RowData) error) error
}

// SnapshotSource is implemented per dialect.
type SnapshotSource interface {
	SliceSource
	FullScanSource
}

// SnapshotExtractor streams every row of one table into the queue exactly
// once, using the sliced-scan algorithm when the table has an order_col and
// a single streaming cursor otherwise.
type SnapshotExtractor struct {
	Base
	Source     SnapshotSource
	Meta       tablemeta.TbMeta
	SliceSize  int
	Shutdown   *lifecycle.ShutdownFlag
	Logger     zerolog.Logger
	// StartAfter seeds the sliced scan's cursor, resuming a prior snapshot
	// from its last persisted order_col value instead of rescanning from
	// the top. Callers with nothing to resume from must set this to
	// rowdata.None() explicitly; the zero ColValue is KindNull, not
	// KindNone, and would be misread as "resume after a NULL row".
	StartAfter rowdata.ColValue
	// OnSlicePosition is invoked after each slice with the last-seen
	// order_col value, for position-file persistence; may be nil.
	OnSlicePosition func(rowdata.ColValue)
}

// Extract implements Extractor. On return (ok or err) the caller must still
// treat queue-drain + shutdown as the producer's responsibility: Extract
// itself performs the drain-wait and sets Shutdown before returning, so
// every code path — sliced and fallback — satisfies the invariant that the
// flag becomes true strictly after every produced item has been pushed.
func (e *SnapshotExtractor) Extract(ctx context.Context, q *queue.Queue) error {
	defer e.finish(ctx, q)

	if !e.Meta.HasOrderCol() {
		return e.extractAll(ctx, q)
	}
	return e.extractBySlices(ctx, q)
}

func (e *SnapshotExtractor) extractAll(ctx context.Context, q *queue.Queue) error {
	err := e.Source.FetchAll(ctx, e.Meta, func(row rowdata.RowData) error {
		return e.pushRow(ctx, q, row)
	})
	if err != nil {
		return engineerr.Wrap(engineerr.KindExtractIo, e.Meta.Schema, e.Meta.Table, err)
	}
	return nil
}

func (e *SnapshotExtractor) extractBySlices(ctx context.Context, q *queue.Queue) error {
	start := e.StartAfter
	for {
		rows, err := e.fetchSliceWithRetry(ctx, start)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := e.pushRow(ctx, q, row); err != nil {
				return err
			}
		}
		if len(rows) > 0 {
			start = orderColValue(e.Meta.OrderCol, rows[len(rows)-1])
			if e.OnSlicePosition != nil {
				e.OnSlicePosition(start)
			}
		}
		// A slice shorter than SliceSize is the dialect's own proof of
		// exhaustion; a slice of exactly SliceSize is ambiguous (it may
		// be the last full page) so the loop issues one more query,
		// which naturally returns 0 rows and then terminates here. This
		// is the empty-probe resolution of the boundary case.
		if len(rows) < e.SliceSize {
			return nil
		}
	}
}

// fetchSliceWithRetry elevates a transient source-read failure to a
// first-class ExtractIo error with one automatic retry, in place of the
// original's unwrap()-on-IO-error panic behavior.
func (e *SnapshotExtractor) fetchSliceWithRetry(ctx context.Context, start rowdata.ColValue) ([]rowdata.RowData, error) {
	rows, err := e.Source.FetchSlice(ctx, e.Meta, start, e.SliceSize)
	if err == nil {
		return rows, nil
	}
	e.Logger.Warn().Err(err).Str("table", e.Meta.QualifiedName()).Msg("slice fetch failed, retrying once")
	rows, err = e.Source.FetchSlice(ctx, e.Meta, start, e.SliceSize)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindExtractIo, e.Meta.Schema, e.Meta.Table, err)
	}
	return rows, nil
}

func (e *SnapshotExtractor) pushRow(ctx context.Context, q *queue.Queue, row rowdata.RowData) error {
	if err := row.Validate(); err != nil {
		return engineerr.Wrap(engineerr.KindEncoding, e.Meta.Schema, e.Meta.Table, err)
	}
	if err := q.Push(ctx, rowdata.NewRowItem(row)); err != nil {
		return engineerr.Wrap(engineerr.KindCancelled, e.Meta.Schema, e.Meta.Table, err)
	}
	return nil
}

// finish busy-waits for the queue to empty, then sets the shutdown flag —
// guaranteeing the consumer never observes shutdown before every emitted
// row is already visible in the queue.
func (e *SnapshotExtractor) finish(ctx context.Context, q *queue.Queue) {
	for !q.IsEmpty() {
		select {
		case <-ctx.Done():
			e.Shutdown.Set()
			return
		case <-time.After(drainPollInterval):
		}
	}
	e.Shutdown.Set()
}

func orderColValue(orderCol string, row rowdata.RowData) rowdata.ColValue {
	if v, ok := row.After[orderCol]; ok {
		return v
	}
	if v, ok := row.Before[orderCol]; ok {
		return v
	}
	return rowdata.None()
}
