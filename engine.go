package cohere

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// Origin identifies where a transaction entered the engine.
type Origin string

const (
	// OriginDirect is a caller-visible synchronous Submit.
	OriginDirect Origin = "direct"

	// OriginStaged is a debounced commit from the stage slot.
	OriginStaged Origin = "staged"

	// OriginBinding is a change arriving from an external cell.
	OriginBinding Origin = "binding"

	// OriginRestore is a snapshot restore through a codec.
	OriginRestore Origin = "restore"
)

// Transaction carries one update through the processing pipeline. It either
// fully commits or has no effect; no intermediate state is observable
// outside the engine.
type Transaction[V any] struct {
	// Current is the committed snapshot the update applies to.
	Current Snapshot[V]

	// Partial is the submitted update over primary keys. Values here always
	// take precedence over anything the resolver derives.
	Partial Snapshot[V]

	// Derived is the resolver's output for this changed-key subset.
	Derived Snapshot[V]

	// Candidate is the complete snapshot under verification. Populated by
	// the resolve stage.
	Candidate Snapshot[V]

	// Origin identifies where the update entered the engine.
	Origin Origin
}

const (
	resolveID  pipz.Name = "resolve"
	verifyID   pipz.Name = "verify"
	pipelineID pipz.Name = "transaction"
)

// buildPipeline assembles the resolve and verify stages and wraps them with
// the configured pipeline options.
func (c *Controller[V]) buildPipeline() pipz.Chainable[*Transaction[V]] {
	resolve := pipz.Apply(resolveID, func(_ context.Context, tx *Transaction[V]) (*Transaction[V], error) {
		merged := tx.Current.Clone()
		for k, v := range tx.Partial {
			merged[k] = v
		}

		if c.resolver != nil {
			derived, err := c.resolver.Resolve(tx.Current.Clone(), tx.Partial.Clone())
			if err != nil {
				var de *DerivationError
				if !errors.As(err, &de) {
					err = &DerivationError{Keys: tx.Partial.Keys(), Err: err}
				}
				return nil, err
			}
			for k := range derived {
				if !c.schema.Contains(k) {
					return nil, &DerivationError{
						Keys: tx.Partial.Keys(),
						Err:  fmt.Errorf("resolver produced undeclared key %q", k),
					}
				}
			}
			tx.Derived = derived
			// The literal partial value wins over anything derived for the
			// same key; the resolver only fills keys absent from the merge.
			for k, v := range derived {
				if _, ok := tx.Partial[k]; !ok {
					merged[k] = v
				}
			}
		}

		tx.Candidate = merged
		return tx, nil
	})

	verify := pipz.Effect(verifyID, func(_ context.Context, tx *Transaction[V]) error {
		if c.verifier == nil {
			return nil
		}
		if err := c.verifier(tx.Candidate); err != nil {
			var rej *RejectionError
			if errors.As(err, &rej) {
				return err
			}
			return &RejectionError{Reason: err.Error(), Err: err}
		}
		return nil
	})

	pipeline := pipz.Chainable[*Transaction[V]](pipz.NewSequence(pipelineID, resolve, verify))
	for _, opt := range c.opts {
		pipeline = opt(pipeline)
	}
	return pipeline
}

// Submit applies a partial update synchronously through the engine: merge,
// resolve, verify, then commit, with exactly one coalesced refresh on
// acceptance. On rejection the snapshot is unchanged, a refresh is enqueued
// so the UI reverts, and the rejection is returned.
//
// Called from a goroutine other than the owning loop, Submit is re-posted to
// the loop as fire-and-forget and returns nil; rejections still revert the
// UI and are observable via signals, LastRejection, and RejectionHistory.
// Use Loop.Do to obtain the result from a foreign goroutine.
func (c *Controller[V]) Submit(values Snapshot[V]) error {
	if c.Lifecycle() != LifecycleActive {
		return ErrDisposed
	}
	if !c.loop.OnLoop() {
		vals := values.Clone()
		c.loop.Post(func() {
			_ = c.submit(vals, OriginDirect, nil)
		})
		return nil
	}
	return c.submit(values, OriginDirect, nil)
}

// SubmitValue submits a single-key update. See Submit.
func (c *Controller[V]) SubmitValue(key Key, value V) error {
	return c.Submit(Snapshot[V]{key: value})
}

// submit runs the full transaction on the owning loop.
func (c *Controller[V]) submit(values Snapshot[V], origin Origin, src *binding[V]) error {
	start := c.clock.Now()

	if c.Lifecycle() != LifecycleActive {
		return ErrDisposed
	}
	if len(values) == 0 {
		return c.reject(origin, "update", start, &RejectionError{Reason: "empty update"})
	}
	for k := range values {
		if c.schema.IsDerived(k) {
			return c.reject(origin, "update", start, &RejectionError{Reason: "derived key " + string(k) + " is read-only"})
		}
		if !c.schema.IsPrimary(k) {
			return c.reject(origin, "update", start, &RejectionError{Reason: "unknown key " + string(k)})
		}
	}

	tx := &Transaction[V]{
		Current: c.snapshot(),
		Partial: values,
		Origin:  origin,
	}
	out, err := c.pipeline.Process(context.Background(), tx)
	if err != nil {
		var rej *RejectionError
		var der *DerivationError
		switch {
		case errors.As(err, &der):
			return c.reject(origin, "resolve", start, der)
		case errors.As(err, &rej):
			return c.reject(origin, "verify", start, rej)
		default:
			return c.reject(origin, "pipeline", start, err)
		}
	}

	committed := out.Candidate.Clone()
	c.current.Store(&committed)
	c.lastRejection.Store(nil)

	c.pushBindings(out.Current, committed, src)

	capitan.Emit(context.Background(), TransactionAccepted,
		KeyController.Field(c.id),
		KeyOrigin.Field(string(origin)),
		KeyKeys.Field(joinKeys(values.Keys())),
	)
	if c.metrics != nil {
		c.metrics.OnTransactionAccepted(origin, c.clock.Since(start))
	}

	c.Invalidate()
	return nil
}

// reject records a failed transaction, enqueues the reverting refresh, and
// returns the error. The snapshot is never touched.
func (c *Controller[V]) reject(origin Origin, stage string, start time.Time, err error) error {
	e := err
	c.lastRejection.Store(&e)
	c.history.push(err)

	signal := TransactionRejected
	var der *DerivationError
	switch {
	case errors.As(err, &der):
		signal = DerivationFailed
	case stage == "pipeline":
		signal = PipelineFailed
	}
	capitan.Emit(context.Background(), signal,
		KeyController.Field(c.id),
		KeyOrigin.Field(string(origin)),
		KeyError.Field(err.Error()),
	)
	if c.metrics != nil {
		c.metrics.OnTransactionRejected(origin, stage, c.clock.Since(start))
	}

	c.Invalidate()
	return err
}

// pushBindings writes changed committed values to bound cells, skipping the
// binding the update arrived from.
func (c *Controller[V]) pushBindings(previous, committed Snapshot[V], src *binding[V]) {
	for key, b := range c.bindings {
		if b == src {
			continue
		}
		next := committed[key]
		if reflect.DeepEqual(previous[key], next) {
			continue
		}
		if err := b.cell.Set(next); err != nil {
			capitan.Emit(context.Background(), BindingPushFailed,
				KeyController.Field(c.id),
				KeyField.Field(string(key)),
				KeyError.Field(err.Error()),
			)
		}
	}
}

func joinKeys(keys []Key) string {
	ks := make([]string, len(keys))
	for i, k := range keys {
		ks[i] = string(k)
	}
	return strings.Join(ks, ",")
}
