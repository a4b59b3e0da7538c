package extractor

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/dtpipe/dtpipe/internal/engineerr"
	"github.com/dtpipe/dtpipe/internal/lifecycle"
	"github.com/dtpipe/dtpipe/internal/queue"
)

// CDCExtractor pumps items from a CDCSource into the queue until the
// source reports permanent disconnect (io.EOF) or ctx is cancelled.
type CDCExtractor struct {
	Base
	Source   CDCSource
	Shutdown *lifecycle.ShutdownFlag
	Logger   zerolog.Logger
}

// Extract implements Extractor.
func (e *CDCExtractor) Extract(ctx context.Context, q *queue.Queue) error {
	defer e.finish(ctx, q)

	for {
		item, err := e.Source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return engineerr.Wrap(engineerr.KindCancelled, "", "", ctx.Err())
			}
			return engineerr.Wrap(engineerr.KindExtractIo, "", "", err)
		}
		if err := q.Push(ctx, item); err != nil {
			return engineerr.Wrap(engineerr.KindCancelled, "", "", err)
		}
	}
}

func (e *CDCExtractor) finish(ctx context.Context, q *queue.Queue) {
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
