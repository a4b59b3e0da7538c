package parallelizer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dtpipe/dtpipe/internal/rowdata"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		name         string
		n            int
		parallelSize int
		wantLens     []int
	}{
		{"single partition for size<=1", 5, 1, []int{5}},
		{"empty input", 0, 4, []int{}},
		{"ten rows over two slots", 10, 2, []int{6, 4}},
		{"fewer rows than slots trims empties", 2, 5, []int{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]int, tt.n)
			for i := range data {
				data[i] = i
			}
			got := Partition(data, tt.parallelSize)
			require.Len(t, got, len(tt.wantLens))
			total := 0
			for i, part := range got {
				require.Len(t, part, tt.wantLens[i], "partition %d", i)
				total += len(part)
			}
			require.Equal(t, tt.n, total)
		})
	}
}

type fakeSinker struct {
	mu    sync.Mutex
	calls [][]rowdata.RowData
}

func (f *fakeSinker) SinkDML(ctx context.Context, rows []rowdata.RowData, batch bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rows)
	return nil
}

func (f *fakeSinker) SinkDDL(ctx context.Context, ddls []rowdata.DdlData, batch bool) error {
	return nil
}

func row(table string, n int) rowdata.RowData {
	return rowdata.RowData{
		Schema: "public",
		Table:  table,
		Op:     rowdata.OpInsert,
		After:  map[string]rowdata.ColValue{"id": {Kind: rowdata.KindInt, Int: int64(n)}},
	}
}

func TestSinkDMLModeSnapshotFansOutAcrossSinkers(t *testing.T) {
	rows := make([]rowdata.RowData, 0, 20)
	for i := 0; i < 20; i++ {
		rows = append(rows, row("t", i))
	}
	sinkers := []Sinker{&fakeSinker{}, &fakeSinker{}}
	locks := []*sync.Mutex{{}, {}}
	p := New(2, ModeSnapshot)

	require.NoError(t, p.SinkDML(context.Background(), rows, sinkers, locks))

	total := 0
	for _, s := range sinkers {
		for _, c := range s.(*fakeSinker).calls {
			total += len(c)
		}
	}
	require.Equal(t, len(rows), total)
}

func TestSinkDMLModeSerialUsesOnlySinkerZero(t *testing.T) {
	rows := []rowdata.RowData{row("t", 1), row("t", 2)}
	s0, s1 := &fakeSinker{}, &fakeSinker{}
	sinkers := []Sinker{s0, s1}
	locks := []*sync.Mutex{{}, {}}
	p := New(2, ModeSerial)

	require.NoError(t, p.SinkDML(context.Background(), rows, sinkers, locks))
	require.Empty(t, s1.calls, "ModeSerial must not dispatch to any sinker but the first")
	require.Len(t, s0.calls, 1)
	require.Len(t, s0.calls[0], 2)
}
