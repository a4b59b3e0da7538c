package extractor

import (
	"context"

	"github.com/dtpipe/dtpipe/internal/queue"
)

// Sequence runs its member extractors one at a time, in order, each to
// completion before the next starts — the barrier FanOut deliberately
// doesn't provide. Used to make structure copy (DDL) a hard prerequisite
// of snapshot copy (rows): every item Sequence's first member pushes is
// visible ahead of every item its later members push, in the same shared
// queue, so the consumer never applies a row before the CREATE TABLE that
// row's table depends on.
type Sequence struct {
	Base
	Extractors []Extractor
}

// Extract implements Extractor. It stops and returns the first member
// error without running the remaining members.
func (s *Sequence) Extract(ctx context.Context, q *queue.Queue) error {
	for _, ex := range s.Extractors {
		if err := ex.Extract(ctx, q); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// Close closes every member extractor, returning the first error.
func (s *Sequence) Close(ctx context.Context) error {
	var firstErr error
	for _, ex := range s.Extractors {
		if err := ex.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
