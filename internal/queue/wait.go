package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// errTimedOut is a private sentinel returned by waitCondUntil when the
// deadline elapses without the condition being signalled; callers translate
// it back into "no items, try again" rather than surfacing it.
var errTimedOut = errors.New("queue: wait deadline exceeded")

// waitCond blocks on cond.Wait(), but also wakes (and returns ctx.Err()) if
// ctx is cancelled while waiting. cond's Mutex must already be held by the
// caller. A pending Push/Pop waiter that is cancelled aborts with this
// cancellation error rather than blocking forever.
func waitCond(ctx context.Context, cond *sync.Cond) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	stop := context.AfterFunc(ctx, func() { cond.Broadcast() })
	defer stop()
	cond.Wait()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (q *Queue) waitCond(ctx context.Context, cond *sync.Cond) error {
	return waitCond(ctx, cond)
}

// waitCondUntil behaves like waitCond but additionally wakes at deadline,
// returning errTimedOut (not a context error) so the caller can treat it as
// "drain window elapsed" rather than cancellation.
func (q *Queue) waitCondUntil(ctx context.Context, cond *sync.Cond, deadline time.Time) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	timer := time.AfterFunc(time.Until(deadline), func() { cond.Broadcast() })
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() { cond.Broadcast() })
	defer stop()

	cond.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if time.Now().After(deadline) {
		return errTimedOut
	}
	return nil
}
