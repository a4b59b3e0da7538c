// Package extractor produces DtItems from a source and deposits them into
// the bounded transfer queue: snapshot (sliced scan), structure (DDL), and
// CDC (contract-only beyond the Postgres implementation).
package extractor

import (
	"context"

	"github.com/dtpipe/dtpipe/internal/queue"
)

// Extractor is the capability set every extractor implements. Close must be
// callable multiple times idempotently.
type Extractor interface {
	Extract(ctx context.Context, q *queue.Queue) error
	Close(ctx context.Context) error
}

// Base embeds into concrete extractors so Close only needs to be overridden
// when there's an actual connection to release, mirroring the default
// no-op capability-set pattern from the source connector library.
type Base struct{}

// Close is a no-op default.
func (Base) Close(ctx context.Context) error { return nil }
