// Package queue implements the bounded multi-producer/single-consumer
// transfer queue that is the single point of backpressure between the
// extractor and the parallelizer/sinker stage.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dtpipe/dtpipe/internal/rowdata"
)

// errClosed is returned by Push on a closed queue, and by Pop once a closed
// queue has no items left, when the caller's context is still live.
var errClosed = errors.New("queue: closed")

func closedErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return errClosed
}

// Queue is a bounded FIFO of DtItems capped on item count and byte size.
// Either cap may be 0, meaning "unbounded on that axis". Push blocks until
// capacity is available or the context is cancelled; Pop blocks until an
// item is available. FIFO is guaranteed per producer; across producers,
// only causal order through the source is preserved.
type Queue struct {
	maxItems int
	maxBytes int

	mu     sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []rowdata.DtItem
	bytes    int
	closed   bool
}

// New creates a Queue with the given item-count and byte-size caps.
func New(maxItems, maxBytes int) *Queue {
	q := &Queue{maxItems: maxItems, maxBytes: maxBytes}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Push blocks until len(q) < maxItems and bytes+size(item) <= maxBytes (any
// cap of 0 is treated as always-satisfied), or ctx is cancelled. An item
// larger than maxBytes is still admitted once the queue is empty, so it
// cannot block forever. Push on a closed queue returns an error.
func (q *Queue) Push(ctx context.Context, item rowdata.DtItem) error {
	size := item.ByteSize()

	q.mu.Lock()
	for !q.closed && !q.hasRoom(size) {
		if waitErr := q.waitCond(ctx, q.notFull); waitErr != nil {
			q.mu.Unlock()
			return waitErr
		}
	}
	if q.closed {
		q.mu.Unlock()
		return closedErr(ctx)
	}
	q.items = append(q.items, item)
	q.bytes += size
	q.mu.Unlock()
	q.notEmpty.Signal()
	return nil
}

func (q *Queue) hasRoom(size int) bool {
	if q.maxItems > 0 && len(q.items) >= q.maxItems {
		return false
	}
	if q.maxBytes > 0 && q.bytes+size > q.maxBytes && len(q.items) > 0 {
		return false
	}
	return true
}

// Pop blocks until an item is available or ctx is cancelled, returning it
// in FIFO order.
func (q *Queue) Pop(ctx context.Context) (rowdata.DtItem, error) {
	q.mu.Lock()
	for len(q.items) == 0 && !q.closed {
		if waitErr := q.waitCond(ctx, q.notEmpty); waitErr != nil {
			q.mu.Unlock()
			return rowdata.DtItem{}, waitErr
		}
	}
	if len(q.items) == 0 {
		q.mu.Unlock()
		return rowdata.DtItem{}, closedErr(ctx)
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.bytes -= item.ByteSize()
	q.mu.Unlock()
	q.notFull.Signal()
	return item, nil
}

// Drain returns up to maxItems items (or maxBytes worth, whichever binds
// first), returning early once the queue empties or maxWait elapses. A
// non-positive maxWait means "wait indefinitely for at least one item".
func (q *Queue) Drain(ctx context.Context, maxItems, maxBytes int, maxWait time.Duration) ([]rowdata.DtItem, error) {
	deadline := time.Time{}
	if maxWait > 0 {
		deadline = time.Now().Add(maxWait)
	}

	q.mu.Lock()
	for len(q.items) == 0 && !q.closed {
		if !deadline.IsZero() && time.Now().After(deadline) {
			q.mu.Unlock()
			return nil, nil
		}
		var waitErr error
		if deadline.IsZero() {
			waitErr = q.waitCond(ctx, q.notEmpty)
		} else {
			waitErr = q.waitCondUntil(ctx, q.notEmpty, deadline)
		}
		if waitErr != nil {
			q.mu.Unlock()
			if waitErr == errTimedOut {
				return nil, nil
			}
			return nil, waitErr
		}
	}

	out := make([]rowdata.DtItem, 0, min(len(q.items), maxOr(maxItems, len(q.items))))
	taken := 0
	bytesTaken := 0
	for len(q.items) > 0 {
		if maxItems > 0 && taken >= maxItems {
			break
		}
		next := q.items[0]
		size := next.ByteSize()
		if maxBytes > 0 && taken > 0 && bytesTaken+size > maxBytes {
			break
		}
		out = append(out, next)
		q.items = q.items[1:]
		q.bytes -= size
		taken++
		bytesTaken += size
	}
	q.mu.Unlock()
	if taken > 0 {
		q.notFull.Broadcast()
	}
	return out, nil
}

// Len returns the current item count.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty reports whether the queue currently holds no items.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// ByteSize returns the current accumulated byte size of queued items.
func (q *Queue) ByteSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bytes
}

// Close wakes every blocked Push/Pop/Drain so callers observe cancellation;
// it does not discard already-queued items, which Pop/Drain continue to
// return until the queue is empty.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

func maxOr(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
