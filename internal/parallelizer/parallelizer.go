// Package parallelizer drains the transfer queue, partitions snapshot rows
// across worker slots, and dispatches to sinkers — the component that
// turns a FIFO stream back into bounded-concurrency batches without
// reintroducing key-based ordering during snapshot copy.
package parallelizer

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dtpipe/dtpipe/internal/queue"
	"github.com/dtpipe/dtpipe/internal/rowdata"
)

// Sinker is the subset of the sinker contract the parallelizer dispatches
// against; kept narrow here to avoid an import cycle with package sinker.
type Sinker interface {
	SinkDML(ctx context.Context, rows []rowdata.RowData, batch bool) error
	SinkDDL(ctx context.Context, ddls []rowdata.DdlData, batch bool) error
}

// DispatchMode selects the CDC ordering variant; snapshot mode always uses
// the partitioning rule below regardless of DispatchMode.
type DispatchMode uint8

const (
	// ModeSnapshot partitions rows across all sinkers with no ordering
	// guarantee across partitions (the default/only mode for snapshot).
	ModeSnapshot DispatchMode = iota
	// ModeSerial routes every row through sinker 0, preserving global
	// source order — used for CDC streams that must not reorder.
	ModeSerial
	// ModeMerge coalesces consecutive operations sharing the same id
	// columns before dispatch, then routes serially.
	ModeMerge
	// ModeTable groups dispatch by destination table, one worker per
	// table, preserving per-table order.
	ModeTable
)

// Parallelizer partitions a drained batch and fans it out to Sinkers.
type Parallelizer struct {
	ParallelSize int
	Mode         DispatchMode
}

// New creates a Parallelizer with the given fan-out width.
func New(parallelSize int, mode DispatchMode) *Parallelizer {
	if parallelSize < 1 {
		parallelSize = 1
	}
	return &Parallelizer{ParallelSize: parallelSize, Mode: mode}
}

// Drain delegates to the queue's own Drain.
func (p *Parallelizer) Drain(ctx context.Context, q *queue.Queue, maxItems, maxBytes int, maxWait time.Duration) ([]rowdata.DtItem, error) {
	return q.Drain(ctx, maxItems, maxBytes, maxWait)
}

// Partition splits data into at most P contiguous partitions, each of size
// <= avg = len(data)/P + 1, assigning row i to partition i/avg. It
// intentionally does not shard by key: snapshot inserts must not observe
// key-based cross-partition ordering.
func Partition[T any](data []T, parallelSize int) [][]T {
	if parallelSize <= 1 {
		return [][]T{data}
	}
	avg := len(data)/parallelSize + 1
	partitions := make([][]T, parallelSize)
	for i := range partitions {
		partitions[i] = make([]T, 0, avg)
	}
	for i, row := range data {
		idx := i / avg
		partitions[idx] = append(partitions[idx], row)
	}
	// Trim any trailing empty partitions created when len(data) is small
	// relative to parallelSize, so callers can range without special-casing.
	last := 0
	for i, p := range partitions {
		if len(p) > 0 {
			last = i + 1
		}
	}
	return partitions[:last]
}

// SinkDML partitions rows (snapshot mode) and dispatches each non-empty
// partition k to sinkers[k % len(sinkers)], holding that sinker's slot
// mutex for the duration of its batch. The first error cancels the rest.
func (p *Parallelizer) SinkDML(ctx context.Context, rows []rowdata.RowData, sinkers []Sinker, locks []*sync.Mutex) error {
	if len(rows) == 0 {
		return nil
	}
	switch p.Mode {
	case ModeSerial, ModeMerge:
		rows = p.prepareSerial(rows)
		return dispatchOne(ctx, rows, sinkers[0], locks[0])
	case ModeTable:
		return p.sinkByTable(ctx, rows, sinkers, locks)
	default:
		return p.sinkSnapshot(ctx, rows, sinkers, locks)
	}
}

func (p *Parallelizer) sinkSnapshot(ctx context.Context, rows []rowdata.RowData, sinkers []Sinker, locks []*sync.Mutex) error {
	partitions := Partition(rows, p.ParallelSize)
	g, gctx := errgroup.WithContext(ctx)
	for k, part := range partitions {
		if len(part) == 0 {
			continue
		}
		k, part := k, part
		slot := k % len(sinkers)
		g.Go(func() error {
			return dispatchOne(gctx, part, sinkers[slot], locks[slot])
		})
	}
	return g.Wait()
}

func (p *Parallelizer) sinkByTable(ctx context.Context, rows []rowdata.RowData, sinkers []Sinker, locks []*sync.Mutex) error {
	byTable := make(map[string][]rowdata.RowData)
	order := make([]string, 0)
	for _, r := range rows {
		k := r.QualifiedName()
		if _, ok := byTable[k]; !ok {
			order = append(order, k)
		}
		byTable[k] = append(byTable[k], r)
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range order {
		slot := i % len(sinkers)
		part := byTable[name]
		g.Go(func() error {
			return dispatchOne(gctx, part, sinkers[slot], locks[slot])
		})
	}
	return g.Wait()
}

// prepareSerial coalesces consecutive operations sharing the same id-derived
// key in ModeMerge (squash-update semantics); ModeSerial leaves rows as-is.
func (p *Parallelizer) prepareSerial(rows []rowdata.RowData) []rowdata.RowData {
	if p.Mode != ModeMerge {
		return rows
	}
	merged := make([]rowdata.RowData, 0, len(rows))
	for _, r := range rows {
		if n := len(merged); n > 0 && merged[n-1].QualifiedName() == r.QualifiedName() &&
			sameKey(merged[n-1], r) {
			merged[n-1] = r
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func sameKey(a, b rowdata.RowData) bool {
	av, bv := keyValues(a), keyValues(b)
	if len(av) != len(bv) || len(av) == 0 {
		return false
	}
	for i := range av {
		if av[i] != bv[i] {
			return false
		}
	}
	return true
}

func keyValues(r rowdata.RowData) []string {
	src := r.After
	if src == nil {
		src = r.Before
	}
	out := make([]string, 0, len(src))
	for _, v := range src {
		out = append(out, v.String())
	}
	return out
}

func dispatchOne(ctx context.Context, rows []rowdata.RowData, s Sinker, lock *sync.Mutex) error {
	lock.Lock()
	defer lock.Unlock()
	return s.SinkDML(ctx, rows, true)
}

// SinkDDL applies ddls on sinker 0 while holding that sinker's slot mutex.
// DDL is never partitioned, since order matters for DDL.
func (p *Parallelizer) SinkDDL(ctx context.Context, ddls []rowdata.DdlData, sinkers []Sinker, locks []*sync.Mutex) error {
	if len(ddls) == 0 || len(sinkers) == 0 {
		return nil
	}
	locks[0].Lock()
	defer locks[0].Unlock()
	return sinkers[0].SinkDDL(ctx, ddls, true)
}
