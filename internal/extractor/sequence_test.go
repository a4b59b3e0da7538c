package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dtpipe/dtpipe/internal/queue"
	"github.com/dtpipe/dtpipe/internal/rowdata"
)

type orderRecordingExtractor struct {
	Base
	tag     string
	order   *[]string
	failErr error
}

func (o *orderRecordingExtractor) Extract(ctx context.Context, q *queue.Queue) error {
	*o.order = append(*o.order, o.tag)
	if o.failErr != nil {
		return o.failErr
	}
	return q.Push(ctx, rowdata.NewHeartbeatItem())
}

func TestSequenceRunsMembersInOrderNotConcurrently(t *testing.T) {
	q := queue.New(0, 0)
	var order []string
	seq := &Sequence{Extractors: []Extractor{
		&orderRecordingExtractor{tag: "structure", order: &order},
		&orderRecordingExtractor{tag: "snapshot-a", order: &order},
		&orderRecordingExtractor{tag: "snapshot-b", order: &order},
	}}

	require.NoError(t, seq.Extract(context.Background(), q))
	require.Equal(t, []string{"structure", "snapshot-a", "snapshot-b"}, order)
	require.Equal(t, 3, q.Len())
}

func TestSequenceStopsAtFirstError(t *testing.T) {
	q := queue.New(0, 0)
	var order []string
	wantErr := errors.New("boom")
	seq := &Sequence{Extractors: []Extractor{
		&orderRecordingExtractor{tag: "structure", failErr: wantErr, order: &order},
		&orderRecordingExtractor{tag: "never-runs", order: &order},
	}}

	err := seq.Extract(context.Background(), q)
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, []string{"structure"}, order)
}
