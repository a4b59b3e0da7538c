package extractor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dtpipe/dtpipe/internal/queue"
	"github.com/dtpipe/dtpipe/internal/rowdata"
)

type countingExtractor struct {
	Base
	n       int32
	failAt  int32
	failErr error
}

func (c *countingExtractor) Extract(ctx context.Context, q *queue.Queue) error {
	atomic.AddInt32(&c.n, 1)
	if c.failAt != 0 {
		return c.failErr
	}
	return q.Push(ctx, rowdata.NewHeartbeatItem())
}

func TestFanOutRunsEveryMember(t *testing.T) {
	q := queue.New(0, 0)
	members := []Extractor{&countingExtractor{}, &countingExtractor{}, &countingExtractor{}}
	fan := &FanOut{Extractors: members, Workers: 2}

	require.NoError(t, fan.Extract(context.Background(), q))
	require.Equal(t, len(members), q.Len(), "one item per member")
}

func TestFanOutPropagatesFirstError(t *testing.T) {
	q := queue.New(0, 0)
	wantErr := errors.New("boom")
	members := []Extractor{
		&countingExtractor{},
		&countingExtractor{failAt: 1, failErr: wantErr},
		&countingExtractor{},
	}
	fan := &FanOut{Extractors: members, Workers: 3}

	err := fan.Extract(context.Background(), q)
	require.ErrorIs(t, err, wantErr)
}

func TestFanOutDefaultsWorkersToOne(t *testing.T) {
	q := queue.New(0, 0)
	members := []Extractor{&countingExtractor{}}
	fan := &FanOut{Extractors: members, Workers: 0}
	require.NoError(t, fan.Extract(context.Background(), q))
}
