// Package cohere provides reactive multi-field consistency primitives for
// binding UI controls to shared application state.
//
// The core type is Controller, which owns a named set of interdependent
// fields and keeps them mutually consistent: partial updates from either the
// user interface or external state are merged, completed by a resolver,
// checked by a verifier, and committed atomically, or rejected with the
// previous snapshot intact.
//
// # Controller
//
// A Controller processes every update through the same pipeline, regardless
// of origin:
//
//	Partial update → Merge → Resolve → Verify → Commit → Refresh
//
// If verification rejects the candidate, the snapshot is unchanged and one
// refresh is enqueued so the UI reverts to the last good state. No partially
// applied update is ever observable.
//
// # Fields
//
// Each controller declares a Schema: primary keys are externally writable,
// derived keys are recomputed by the Resolver. The Resolver receives exactly
// the changed keys and fills in everything else needed for consistency; a
// value literally present in the update always wins over a derived one.
//
// # Staging
//
// High-frequency UI input goes through Stage, which keeps a single pending
// slot with a debounce countdown. Re-staging overwrites the slot and restarts
// the countdown; on expiry the slot commits through the pipeline exactly
// once. Submit is the synchronous path for programmatic updates.
//
// # Event loop
//
// Controllers are tied to a Loop, the single goroutine shared with UI
// rendering. Calls from other goroutines are transparently re-posted to the
// loop rather than executed in place. Accepted commits enqueue a coalesced
// refresh: any number of commits before the loop's next turn produce one
// refresh call, during which the internal-update and signals-blocked flags
// are held so widget handlers do not feed changes back into the engine.
//
// # Bindings
//
// Connect links one primary field to an external Cell bidirectionally.
// Values arriving from the cell flow through the same resolve-and-verify
// pipeline as any other input; committed changes are pushed back to bound
// cells. Bindings are revocable from either side.
//
// # Example
//
//	schema := cohere.Schema{
//	    Primary: []cohere.Key{"celsius", "fahrenheit"},
//	}
//	resolver := cohere.NewCases[float64]("celsius", "fahrenheit").
//	    On(fromCelsius, "celsius").
//	    On(fromFahrenheit, "fahrenheit").
//	    On(passthrough, "celsius", "fahrenheit")
//
//	loop := cohere.NewLoop()
//	ctrl, err := cohere.New("temperature", loop, schema,
//	    cohere.Snapshot[float64]{"celsius": 0, "fahrenheit": 32},
//	    resolver, verifier,
//	).Debounce(150 * time.Millisecond).
//	    OnRefresh(func(s cohere.Snapshot[float64]) { render(s) }).
//	    Build()
package cohere

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
)

// DefaultDebounce is the default debounce duration for staged commits.
const DefaultDebounce = 150 * time.Millisecond

// Controller owns the snapshot of one field set and keeps it consistent
// across UI input, programmatic updates, and external bindings.
type Controller[V any] struct {
	id       string
	name     string
	loop     *Loop
	schema   Schema
	resolver Resolver[V]
	verifier Verifier[V]
	opts     []Option[V]
	pipeline pipz.Chainable[*Transaction[V]]

	debounce time.Duration
	clock    clockz.Clock
	metrics  MetricsProvider
	refresh  func(Snapshot[V])
	history  *rejectionRing

	lifecycle     atomic.Int32
	current       atomic.Pointer[Snapshot[V]]
	lastRejection atomic.Pointer[error]

	invalidating   atomic.Bool
	internalUpdate atomic.Bool
	signalsBlocked atomic.Bool

	// Staging state. Touched only on the owning loop.
	slot         Snapshot[V]
	slotSet      bool
	slotDeadline time.Time
	timer        clockz.Timer
	pumpStop     chan struct{}

	// Bindings. Touched only on the owning loop.
	bindings map[Key]*binding[V]

	buildErr error
}

// New creates a Controller for the given schema, bound to the owning loop.
//
// The initial snapshot must assign a value to every declared key and must
// satisfy the verifier. The resolver derives missing fields on partial
// updates; a nil resolver derives nothing. A nil verifier accepts every
// candidate. Pipeline options (With*) configure transaction middleware.
//
// Instance configuration uses chainable methods, finished by Build:
//
//	ctrl, err := cohere.New("unit-entry", loop, schema, initial, resolver, verifier).
//	    Debounce(200 * time.Millisecond).
//	    OnRefresh(refreshWidgets).
//	    Build()
func New[V any](
	name string,
	loop *Loop,
	schema Schema,
	initial Snapshot[V],
	resolver Resolver[V],
	verifier Verifier[V],
	opts ...Option[V],
) *Controller[V] {
	c := &Controller[V]{
		id:       uuid.NewString(),
		name:     name,
		loop:     loop,
		schema:   schema,
		resolver: resolver,
		verifier: verifier,
		opts:     opts,
		debounce: DefaultDebounce,
		clock:    clockz.RealClock,
		pumpStop: make(chan struct{}),
		bindings: make(map[Key]*binding[V]),
	}
	c.lifecycle.Store(int32(LifecycleConstructed))

	switch {
	case loop == nil:
		c.buildErr = &ConfigError{Reason: "nil loop"}
	default:
		if err := schema.validate(); err != nil {
			c.buildErr = err
			break
		}
		for _, k := range schema.All() {
			if _, ok := initial[k]; !ok {
				c.buildErr = &ConfigError{Reason: "initial snapshot missing key " + string(k)}
				break
			}
		}
		if c.buildErr == nil && len(initial) != len(schema.All()) {
			c.buildErr = &ConfigError{Reason: "initial snapshot contains undeclared keys"}
		}
		if c.buildErr == nil && verifier != nil {
			if err := verifier(initial); err != nil {
				c.buildErr = &ConfigError{Reason: "initial snapshot rejected", Err: err}
			}
		}
	}

	if c.buildErr == nil {
		snap := initial.Clone()
		c.current.Store(&snap)
	}
	return c
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Debounce sets the default debounce duration for Stage.
// Default: DefaultDebounce. Must be called before Build().
func (c *Controller[V]) Debounce(d time.Duration) *Controller[V] {
	c.debounce = d
	return c
}

// Clock sets a custom clock for debounce timers.
// Use this with clockz.FakeClock for deterministic staging tests.
// Must be called before Build().
func (c *Controller[V]) Clock(clock clockz.Clock) *Controller[V] {
	c.clock = clock
	return c
}

// Metrics sets a metrics provider for observability integration.
// Must be called before Build().
func (c *Controller[V]) Metrics(provider MetricsProvider) *Controller[V] {
	c.metrics = provider
	return c
}

// OnRefresh sets the refresh callback invoked with the committed snapshot
// after each coalesced invalidation. The callback runs on the owning loop
// with the internal-update and signals-blocked flags held.
// Must be called before Build().
func (c *Controller[V]) OnRefresh(fn func(Snapshot[V])) *Controller[V] {
	c.refresh = fn
	return c
}

// RejectionHistorySize sets the number of recent rejections to retain.
// Use 0 (default) to only retain the most recent via LastRejection().
// Must be called before Build().
func (c *Controller[V]) RejectionHistorySize(n int) *Controller[V] {
	c.history = newRejectionRing(n)
	return c
}

// Build finishes construction: it validates the configuration, assembles the
// transaction pipeline, activates the controller, and queues the initial
// refresh so widgets reflect the initial snapshot.
func (c *Controller[V]) Build() (*Controller[V], error) {
	if c.buildErr != nil {
		return nil, c.buildErr
	}
	c.pipeline = c.buildPipeline()
	c.transition(LifecycleActive)

	capitan.Emit(context.Background(), ControllerCreated,
		KeyController.Field(c.id),
		KeyName.Field(c.name),
		KeyDebounce.Field(c.debounce),
	)

	c.Invalidate()
	return c, nil
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

// ID returns the unique instance ID of the controller.
func (c *Controller[V]) ID() string { return c.id }

// Name returns the controller name.
func (c *Controller[V]) Name() string { return c.name }

// Lifecycle returns the current lifecycle phase.
func (c *Controller[V]) Lifecycle() Lifecycle {
	return Lifecycle(c.lifecycle.Load())
}

// Disposed reports whether teardown has completed.
func (c *Controller[V]) Disposed() bool {
	return c.Lifecycle() == LifecycleDisposed
}

// Snapshot returns a copy of the committed snapshot.
func (c *Controller[V]) Snapshot() Snapshot[V] {
	return c.snapshot().Clone()
}

// Get returns the committed value for key.
func (c *Controller[V]) Get(key Key) (V, bool) {
	v, ok := c.snapshot()[key]
	return v, ok
}

// LastRejection returns the most recent rejection, or nil if the last
// transaction committed.
func (c *Controller[V]) LastRejection() error {
	ptr := c.lastRejection.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// RejectionHistory returns recent rejections, oldest first. Returns nil if
// history is not enabled (see RejectionHistorySize).
func (c *Controller[V]) RejectionHistory() []error {
	return c.history.all()
}

// InternalUpdate reports whether a refresh is currently applying the
// snapshot to the UI. Widget handlers must not re-enter Submit or Stage
// while it is set.
func (c *Controller[V]) InternalUpdate() bool {
	return c.internalUpdate.Load()
}

// SignalsBlocked reports whether widget-level change notifications should be
// suppressed for the duration of the running refresh.
func (c *Controller[V]) SignalsBlocked() bool {
	return c.signalsBlocked.Load()
}

func (c *Controller[V]) snapshot() Snapshot[V] {
	ptr := c.current.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

func (c *Controller[V]) transition(to Lifecycle) {
	from := c.Lifecycle()
	if from == to {
		return
	}
	c.lifecycle.Store(int32(to))
	if c.metrics != nil {
		c.metrics.OnLifecycleChange(from, to)
	}
}

// -----------------------------------------------------------------------------
// Disposal
// -----------------------------------------------------------------------------

// Dispose tears the controller down: the pending stage slot is dropped, the
// debounce timer stopped, all bindings disconnected, and further refreshes
// become no-ops. Dispose is idempotent and completes synchronously on the
// owning loop.
func (c *Controller[V]) Dispose() {
	c.loop.Do(c.dispose)
}

func (c *Controller[V]) dispose() {
	if c.Lifecycle() != LifecycleActive {
		return
	}
	c.transition(LifecycleDisposing)

	close(c.pumpStop)
	if c.timer != nil {
		c.timer.Stop()
	}
	c.slot = nil
	c.slotSet = false

	for key, b := range c.bindings {
		b.cancel()
		delete(c.bindings, key)
	}

	c.transition(LifecycleDisposed)
	capitan.Emit(context.Background(), ControllerDisposed,
		KeyController.Field(c.id),
		KeyName.Field(c.name),
	)
}
