package extractor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dtpipe/dtpipe/internal/queue"
)

// FanOut runs several extractors concurrently against one shared queue,
// bounded to Workers simultaneous Extract calls — the snapshot phase's
// per-table worker pool. It satisfies the Extractor contract itself, so
// the orchestrator's producer task can run a whole table list as a single
// producer.
type FanOut struct {
	Base
	Extractors []Extractor
	Workers    int
}

// Extract implements Extractor. It returns the first error from any
// member extractor; errgroup.WithContext cancels the shared context for
// the rest on that first error.
func (f *FanOut) Extract(ctx context.Context, q *queue.Queue) error {
	g, gctx := errgroup.WithContext(ctx)
	workers := f.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for _, ex := range f.Extractors {
		ex := ex
		g.Go(func() error {
			return ex.Extract(gctx, q)
		})
	}
	return g.Wait()
}

// Close closes every member extractor, returning the first error.
func (f *FanOut) Close(ctx context.Context) error {
	var firstErr error
	for _, ex := range f.Extractors {
		if err := ex.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
