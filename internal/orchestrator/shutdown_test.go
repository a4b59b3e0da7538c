package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dtpipe/dtpipe/internal/extractor"
	"github.com/dtpipe/dtpipe/internal/queue"
	"github.com/dtpipe/dtpipe/internal/rowdata"
)

// blockingExtractor pushes one item then blocks until ctx is cancelled,
// the shape of a long-lived CDC extractor under a cancelled run.
type blockingExtractor struct {
	extractor.Base
}

func (b *blockingExtractor) Extract(ctx context.Context, q *queue.Queue) error {
	if err := q.Push(ctx, rowdata.NewHeartbeatItem()); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunLeavesNoGoroutinesAfterCancelAndClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ex := &blockingExtractor{}
	sink := &recordingSinker{}
	orc := newTestOrchestrator(t, ex, sink)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- orc.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("Run never returned after context cancellation")
	}

	require.NoError(t, orc.Close(context.Background()))
}
