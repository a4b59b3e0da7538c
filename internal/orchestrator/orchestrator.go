// Package orchestrator wires the row model, queue, extractor, parallelizer
// and sinker set together: it spawns the producer (extractor) and consumer
// (drain → parallelize → sink) as concurrent tasks sharing the queue and
// shutdown flag as a decoder → applier pair under one supervising
// errgroup, and owns error escalation and sinker/extractor teardown.
// Connection pools are closed by the caller that opened them.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dtpipe/dtpipe/internal/engineerr"
	"github.com/dtpipe/dtpipe/internal/extractor"
	"github.com/dtpipe/dtpipe/internal/lifecycle"
	"github.com/dtpipe/dtpipe/internal/parallelizer"
	"github.com/dtpipe/dtpipe/internal/position"
	"github.com/dtpipe/dtpipe/internal/queue"
	"github.com/dtpipe/dtpipe/internal/rowdata"
	"github.com/dtpipe/dtpipe/internal/sqlbuilder"
)

// drainBatchItems and drainMaxWait bound each consumer drain cycle: up to
// this many items, or however many accumulate within this window,
// whichever comes first.
const (
	drainBatchItems = 500
	drainMaxWait    = 200 * time.Millisecond
)

// Sinker is the capability set the orchestrator dispatches DML/DDL against,
// identical in shape to parallelizer.Sinker plus lifecycle methods.
type Sinker interface {
	parallelizer.Sinker
	RefreshMeta(ctx context.Context, ddls []rowdata.DdlData) error
	Close(ctx context.Context) error
	ID() string
}

// Orchestrator runs one producer/consumer pair against a shared queue.
// Row partitioning lives in Parallelizer; Orchestrator only
// owns the lifecycle — spawn, drain loop, error escalation, teardown.
type Orchestrator struct {
	Extractor    extractor.Extractor
	Sinkers      []Sinker
	Parallelizer *parallelizer.Parallelizer
	Queue        *queue.Queue
	Shutdown     *lifecycle.ShutdownFlag
	Position     *position.Store
	// Router renames (schema, table) and columns on the way to the
	// destination; nil means passthrough.
	Router sqlbuilder.Router
	Logger zerolog.Logger

	locks []*sync.Mutex
	once  sync.Once
}

// New creates an Orchestrator. Sinkers must be non-empty; one mutex is
// allocated per sinker so the parallelizer never enters the same sinker
// instance concurrently.
func New(ex extractor.Extractor, sinkers []Sinker, par *parallelizer.Parallelizer, q *queue.Queue, shutdown *lifecycle.ShutdownFlag, pos *position.Store, router sqlbuilder.Router, logger zerolog.Logger) *Orchestrator {
	locks := make([]*sync.Mutex, len(sinkers))
	for i := range locks {
		locks[i] = &sync.Mutex{}
	}
	return &Orchestrator{
		Extractor:    ex,
		Sinkers:      sinkers,
		Parallelizer: par,
		Queue:        q,
		Shutdown:     shutdown,
		Position:     pos,
		Router:       router,
		Logger:       logger.With().Str("component", "orchestrator").Logger(),
		locks:        locks,
	}
}

// Run spawns the producer and consumer tasks and blocks until both finish.
// On error from either side, it sets shutdown so the other side observes
// it, waits for both to return, and returns the first error.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.Extractor.Extract(gctx, o.Queue)
		o.Shutdown.Set()
		if err != nil && engineerr.KindOf(err) != engineerr.KindCancelled {
			return err
		}
		return nil
	})

	g.Go(func() error {
		defer o.Shutdown.Set()
		return o.consume(gctx)
	})

	err := g.Wait()
	o.Shutdown.Set()
	o.Queue.Close()
	return err
}

// consume drains the queue in bounded batches, routing each batch through
// the parallelizer to the sinker set, until the queue is empty and the
// shutdown flag is set.
func (o *Orchestrator) consume(ctx context.Context) error {
	sinkers := make([]parallelizer.Sinker, len(o.Sinkers))
	for i, s := range o.Sinkers {
		sinkers[i] = s
	}

	for {
		items, err := o.Queue.Drain(ctx, drainBatchItems, 0, drainMaxWait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return engineerr.Wrap(engineerr.KindCancelled, "", "", err)
		}

		if len(items) == 0 {
			if o.Shutdown.IsSet() && o.Queue.IsEmpty() {
				return nil
			}
			continue
		}

		if err := o.dispatch(ctx, items, sinkers); err != nil {
			return err
		}
	}
}

// dispatch groups a drained batch into rows/DDL/commit items, preserving
// arrival order between the two kinds as it hands each off: a DDL item
// always flushes any rows queued ahead of it first, so the destination
// never applies a row meant for a table the destination hasn't been told
// about yet.
func (o *Orchestrator) dispatch(ctx context.Context, items []rowdata.DtItem, sinkers []parallelizer.Sinker) error {
	var pendingRows []rowdata.RowData

	flushRows := func() error {
		if len(pendingRows) == 0 {
			return nil
		}
		err := o.Parallelizer.SinkDML(ctx, pendingRows, sinkers, o.locks)
		pendingRows = nil
		return err
	}

	for _, item := range items {
		switch item.Kind {
		case rowdata.ItemRow:
			pendingRows = append(pendingRows, o.routeRow(item.Row))
		case rowdata.ItemDdl:
			if err := flushRows(); err != nil {
				return err
			}
			ddl := o.routeDdl(item.Ddl)
			if err := o.Parallelizer.SinkDDL(ctx, []rowdata.DdlData{ddl}, sinkers, o.locks); err != nil {
				return err
			}
			for _, s := range o.Sinkers {
				if err := s.RefreshMeta(ctx, []rowdata.DdlData{ddl}); err != nil {
					return err
				}
			}
		case rowdata.ItemCommit:
			if err := flushRows(); err != nil {
				return err
			}
			if o.Position != nil && item.Position.Coord != "" {
				o.Position.SetCDCCoordinate(item.Position.Coord)
				if err := o.Position.Flush(); err != nil {
					o.Logger.Warn().Err(err).Msg("position flush failed")
				}
			}
		case rowdata.ItemHeartbeat, rowdata.ItemMarker:
			// No destination-side effect; heartbeats and markers are
			// dropped here, not sunk through the sinker set.
		}
	}
	return flushRows()
}

// routeRow applies Router to a row's (schema, table) and column names, the
// engine's only schema transformation. A nil Router is a passthrough.
func (o *Orchestrator) routeRow(r rowdata.RowData) rowdata.RowData {
	if o.Router == nil {
		return r
	}
	dstSchema, dstTable := o.Router.Route(r.Schema, r.Table)
	return rowdata.RowData{
		Schema:   dstSchema,
		Table:    dstTable,
		Op:       r.Op,
		Before:   o.routeCols(r.Schema, r.Table, r.Before),
		After:    o.routeCols(r.Schema, r.Table, r.After),
		Position: r.Position,
	}
}

func (o *Orchestrator) routeCols(schema, table string, cols map[string]rowdata.ColValue) map[string]rowdata.ColValue {
	if cols == nil {
		return nil
	}
	out := make(map[string]rowdata.ColValue, len(cols))
	for col, v := range cols {
		out[o.Router.RouteColumn(schema, table, col)] = v
	}
	return out
}

// routeDdl rewrites a DdlData's (schema, table) bookkeeping fields to the
// destination-side names that each sinker's RefreshMeta receives. The
// Postgres and MySQL sinkers keep sinker.Base's no-op RefreshMeta, so
// their tablemeta.Cache entries are not invalidated on DDL. routeDdl does
// not rewrite the DDL statement text itself (see sinker.RDBEngine.SinkDDL):
// the statement the destination actually executes still names the
// source-side schema.table.
func (o *Orchestrator) routeDdl(d rowdata.DdlData) rowdata.DdlData {
	if o.Router == nil || d.Table == "" {
		return d
	}
	dstSchema, dstTable := o.Router.Route(d.Schema, d.Table)
	d.Schema, d.Table = dstSchema, dstTable
	return d
}

// Close tears down every sinker exactly once. It does not close source
// connection pools, which the caller that built the Orchestrator owns.
func (o *Orchestrator) Close(ctx context.Context) error {
	var firstErr error
	o.once.Do(func() {
		for _, s := range o.Sinkers {
			if err := s.Close(ctx); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("close sinker %s: %w", s.ID(), err)
			}
		}
		if o.Extractor != nil {
			if err := o.Extractor.Close(ctx); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("close extractor: %w", err)
			}
		}
	})
	return firstErr
}
