package cohere

import (
	"context"
	"fmt"

	"github.com/zoobzio/capitan"
)

// Invalidate enqueues one coalesced refresh on the owning loop. Any number
// of calls before the loop's next turn produce a single refresh; coalescing
// reduces count only and never reorders the refresh relative to other
// enqueued work. After disposal begins, Invalidate is a no-op.
//
// The engine calls this automatically on every accepted transaction and on
// every rejection (so the UI reverts to the last good snapshot). It is also
// safe for anyone to call to repaint widgets from the committed snapshot;
// it never changes values and never feeds back into the engine.
func (c *Controller[V]) Invalidate() {
	if c.Lifecycle() >= LifecycleDisposing {
		return
	}
	if !c.invalidating.CompareAndSwap(false, true) {
		return
	}
	c.loop.Post(c.consumeInvalidation)
}

// consumeInvalidation delivers one refresh for all invalidations coalesced
// since the last turn. For its duration the internal-update and
// signals-blocked flags are held; both are cleared unconditionally, even if
// the refresh callback panics.
func (c *Controller[V]) consumeInvalidation() {
	c.invalidating.Store(false)
	if c.Lifecycle() >= LifecycleDisposing {
		return
	}
	if c.refresh == nil {
		return
	}

	c.internalUpdate.Store(true)
	c.signalsBlocked.Store(true)
	defer func() {
		c.internalUpdate.Store(false)
		c.signalsBlocked.Store(false)
		if r := recover(); r != nil {
			capitan.Emit(context.Background(), RefreshPanicked,
				KeyController.Field(c.id),
				KeyError.Field(fmt.Sprint(r)),
			)
		}
	}()

	c.refresh(c.Snapshot())

	capitan.Emit(context.Background(), ControllerRefreshed,
		KeyController.Field(c.id),
	)
	if c.metrics != nil {
		c.metrics.OnRefresh()
	}
}
