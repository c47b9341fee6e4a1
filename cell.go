package cohere

import "sync"

// Value is a minimal in-memory Cell: a shared value with change
// subscriptions. It is safe for concurrent use and suits sharing one value
// between several controllers or between a controller and application code.
type Value[V any] struct {
	mu   sync.Mutex
	v    V
	subs map[int]func()
	next int
}

// NewValue creates a Value holding initial.
func NewValue[V any](initial V) *Value[V] {
	return &Value[V]{v: initial, subs: make(map[int]func())}
}

// Get returns the current value.
func (c *Value[V]) Get() V {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

// Set stores v and notifies subscribers. It never fails.
func (c *Value[V]) Set(v V) error {
	c.mu.Lock()
	c.v = v
	fns := make([]func(), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

// Subscribe registers fn to run after every Set. The returned cancel
// function revokes the subscription and is safe to call more than once.
func (c *Value[V]) Subscribe(fn func()) func() {
	c.mu.Lock()
	if c.subs == nil {
		c.subs = make(map[int]func())
	}
	id := c.next
	c.next++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Ensure Value implements Cell.
var _ Cell[int] = (*Value[int])(nil)
