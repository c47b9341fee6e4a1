package cohere

import "time"

// Stage buffers a UI-originated update in the controller's single stage slot
// and commits it through the engine once the configured debounce interval
// elapses without another stage. Use it in change handlers for
// high-frequency inputs such as typing or dragging.
//
// A second Stage before expiry replaces the slot and restarts the countdown;
// replacement is cancellation, there is no queue. On expiry the slot commits
// exactly once. A rejected staged commit reverts the UI to the last good
// snapshot via refresh; it is never raised, since no caller exists at
// expiry time.
//
// Stage may be called from any goroutine; calls from outside the owning loop
// are transparently re-posted to it.
func (c *Controller[V]) Stage(values Snapshot[V]) {
	c.StageFor(values, c.debounce)
}

// StageValue stages a single-key update. See Stage.
func (c *Controller[V]) StageValue(key Key, value V) {
	c.Stage(Snapshot[V]{key: value})
}

// StageFor stages with an explicit debounce interval, overriding the
// controller default. An interval of zero or less commits synchronously and
// immediately through the engine.
func (c *Controller[V]) StageFor(values Snapshot[V], debounce time.Duration) {
	if c.Lifecycle() != LifecycleActive {
		return
	}
	if !c.loop.OnLoop() {
		vals := values.Clone()
		c.loop.Post(func() { c.stage(vals, debounce) })
		return
	}
	c.stage(values.Clone(), debounce)
}

// stage runs on the owning loop.
func (c *Controller[V]) stage(values Snapshot[V], debounce time.Duration) {
	if c.Lifecycle() != LifecycleActive {
		return
	}

	if debounce <= 0 {
		c.slot = nil
		c.slotSet = false
		_ = c.submit(values, OriginStaged, nil)
		return
	}

	c.slot = values
	c.slotSet = true
	c.slotDeadline = c.clock.Now().Add(debounce)
	c.armTimer(debounce)
}

// armTimer starts or restarts the debounce countdown. The timer is pumped by
// a single goroutine that posts expirations back onto the owning loop; the
// stop/drain/reset sequence prevents a stale expiry from being observed as a
// fresh one.
func (c *Controller[V]) armTimer(d time.Duration) {
	if c.timer == nil {
		c.timer = c.clock.NewTimer(d)
		go c.pumpTimer()
		return
	}
	if !c.timer.Stop() {
		select {
		case <-c.timer.C():
		default:
		}
	}
	c.timer.Reset(d)
}

// pumpTimer forwards timer expirations to the loop until disposal.
func (c *Controller[V]) pumpTimer() {
	for {
		select {
		case <-c.pumpStop:
			return
		case <-c.timer.C():
			c.loop.Post(c.commitStaged)
		}
	}
}

// commitStaged runs on the owning loop when the countdown expires. A stale
// expiry (the slot was re-staged after this expiry was posted) is dropped;
// the fresh countdown will post its own.
func (c *Controller[V]) commitStaged() {
	if !c.slotSet || c.Lifecycle() != LifecycleActive {
		return
	}
	if c.clock.Now().Before(c.slotDeadline) {
		return
	}

	values := c.slot
	c.slot = nil
	c.slotSet = false

	// Rejections and derivation failures are signaled and revert the UI
	// inside submit; the staged path never raises.
	_ = c.submit(values, OriginStaged, nil)
}
