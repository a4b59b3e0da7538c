package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dtpipe/dtpipe/internal/rowdata"
)

func TestPushPopFIFO(t *testing.T) {
	q := New(0, 0)
	ctx := context.Background()

	items := []rowdata.DtItem{
		rowdata.NewMarkerItem("a"),
		rowdata.NewMarkerItem("b"),
		rowdata.NewMarkerItem("c"),
	}
	for _, it := range items {
		require.NoError(t, q.Push(ctx, it))
	}
	for _, want := range items {
		got, err := q.Pop(ctx)
		require.NoError(t, err)
		require.Equal(t, want.Marker, got.Marker)
	}
}

func TestPushBlocksOnItemCap(t *testing.T) {
	q := New(1, 0)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, rowdata.NewMarkerItem("a")))

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.Push(ctx, rowdata.NewMarkerItem("b"))
	}()

	select {
	case <-pushed:
		t.Fatal("second Push returned before room was freed")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := q.Pop(ctx)
	require.NoError(t, err)

	select {
	case err := <-pushed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second Push never unblocked after Pop freed room")
	}
}

func TestPushContextCancelled(t *testing.T) {
	q := New(1, 0)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, rowdata.NewMarkerItem("a")))

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.Error(t, q.Push(cctx, rowdata.NewMarkerItem("b")))
}

func TestDrainBatchAndTimeout(t *testing.T) {
	q := New(0, 0)
	ctx := context.Background()
	for _, m := range []string{"a", "b", "c"} {
		require.NoError(t, q.Push(ctx, rowdata.NewMarkerItem(m)))
	}

	got, err := q.Drain(ctx, 2, 0, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 1, q.Len())

	got, err = q.Drain(ctx, 10, 0, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, q.IsEmpty())
}

func TestDrainEmptyQueueTimesOut(t *testing.T) {
	q := New(0, 0)
	start := time.Now()
	got, err := q.Drain(context.Background(), 10, 0, 20*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, got)
	require.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestCloseUnblocksWaiters(t *testing.T) {
	q := New(0, 0)
	done := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Pop never unblocked after Close")
	}
}

func TestCloseStillDrainsQueuedItems(t *testing.T) {
	q := New(0, 0)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, rowdata.NewMarkerItem("a")))
	q.Close()

	item, err := q.Pop(ctx)
	require.NoError(t, err, "Pop after Close should still return queued items")
	require.Equal(t, "a", item.Marker)
}
