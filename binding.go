package cohere

import (
	"context"
	"reflect"

	"github.com/zoobzio/capitan"
)

// Cell is the minimal contract of an externally owned value cell. The engine
// assumes nothing more than this when establishing a binding.
//
// Subscribe registers a change callback and returns a cancel function that
// revokes it. Implementations may invoke callbacks from any goroutine; the
// controller marshals them onto its owning loop.
type Cell[V any] interface {
	Get() V
	Set(V) error
	Subscribe(fn func()) (cancel func())
}

// SyncMode selects how a binding reconciles the two sides at connect time.
type SyncMode int

const (
	// SyncNone links only future changes.
	SyncNone SyncMode = iota

	// SyncPull adopts the external cell's current value now, submitted
	// through the engine like any other input.
	SyncPull

	// SyncPush overwrites the external cell with the controller's current
	// value now.
	SyncPush
)

// String returns the string representation of the sync mode.
func (m SyncMode) String() string {
	switch m {
	case SyncNone:
		return "none"
	case SyncPull:
		return "pull"
	case SyncPush:
		return "push"
	default:
		return "unknown"
	}
}

// binding is a revocable association between one primary field and an
// external cell. It owns neither endpoint.
type binding[V any] struct {
	key    Key
	cell   Cell[V]
	cancel func()
}

// Connect establishes a bidirectional binding between a primary field and an
// external cell. With SyncPull the cell's current value is first submitted
// through the engine, derived and verified like any other input, and a
// rejection fails the connect. With SyncPush the controller's current value
// is first written to the cell, and a write error fails the connect.
//
// Afterwards, changes from either side flow through the receiving engine; an
// externally pushed value is never written to the snapshot without
// derivation and verification. A cell notification that matches the already
// committed value is dropped, which breaks feedback loops between the two
// sides.
//
// Connecting an unknown or derived key, or a key that is already connected,
// is a BindingError; no subscription is established. Value-type mismatches
// surface the same way: as a rejected initial pull or a refused cell write.
func (c *Controller[V]) Connect(key Key, cell Cell[V], mode SyncMode) error {
	var err error
	c.loop.Do(func() { err = c.connect(key, cell, mode) })
	return err
}

func (c *Controller[V]) connect(key Key, cell Cell[V], mode SyncMode) error {
	if c.Lifecycle() != LifecycleActive {
		return ErrDisposed
	}
	if !c.schema.IsPrimary(key) {
		return &BindingError{Key: key, Reason: "not a primary field"}
	}
	if _, dup := c.bindings[key]; dup {
		return &BindingError{Key: key, Reason: "already connected"}
	}

	switch mode {
	case SyncPull:
		if err := c.submit(Snapshot[V]{key: cell.Get()}, OriginBinding, nil); err != nil {
			return &BindingError{Key: key, Reason: "initial pull rejected: " + err.Error()}
		}
	case SyncPush:
		v, _ := c.Get(key)
		if err := cell.Set(v); err != nil {
			return &BindingError{Key: key, Reason: "initial push failed: " + err.Error()}
		}
	case SyncNone:
	default:
		return &BindingError{Key: key, Reason: "invalid sync mode"}
	}

	b := &binding[V]{key: key, cell: cell}
	b.cancel = cell.Subscribe(func() {
		c.loop.Post(func() { c.onCellChanged(b) })
	})
	c.bindings[key] = b

	capitan.Emit(context.Background(), BindingConnected,
		KeyController.Field(c.id),
		KeyField.Field(string(key)),
		KeyMode.Field(mode.String()),
	)
	return nil
}

// Disconnect revokes the binding for key. Both sides retain their last
// values and remain internally consistent.
func (c *Controller[V]) Disconnect(key Key) error {
	var err error
	c.loop.Do(func() { err = c.disconnect(key) })
	return err
}

func (c *Controller[V]) disconnect(key Key) error {
	b, ok := c.bindings[key]
	if !ok {
		return &BindingError{Key: key, Reason: "not connected"}
	}
	b.cancel()
	delete(c.bindings, key)

	capitan.Emit(context.Background(), BindingDisconnected,
		KeyController.Field(c.id),
		KeyField.Field(string(key)),
	)
	return nil
}

// Connected reports whether key currently has a binding.
func (c *Controller[V]) Connected(key Key) bool {
	var ok bool
	c.loop.Do(func() { _, ok = c.bindings[key] })
	return ok
}

// onCellChanged runs on the owning loop when a bound cell notifies. The
// cell's value is read fresh; if it already matches the committed value the
// notification is an echo of our own push and is dropped. Otherwise it is
// submitted through the engine; a rejection leaves the snapshot unchanged
// and reverts the UI, and the cell keeps its value.
func (c *Controller[V]) onCellChanged(b *binding[V]) {
	if c.Lifecycle() != LifecycleActive {
		return
	}
	if current, ok := c.bindings[b.key]; !ok || current != b {
		return
	}

	v := b.cell.Get()
	if committed, ok := c.Get(b.key); ok && reflect.DeepEqual(committed, v) {
		return
	}
	_ = c.submit(Snapshot[V]{b.key: v}, OriginBinding, b)
}
