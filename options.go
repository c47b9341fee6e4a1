package cohere

import (
	"context"
	"time"

	"github.com/zoobzio/pipz"
)

// Option configures the transaction pipeline of a Controller. Options wrap
// the resolve and verify stages with middleware; they run on every
// transaction regardless of origin, after resolution and verification
// succeed and before commit (or around the whole pipeline, for wrapping
// options).
//
// Instance configuration (debounce, clock, refresh callback, etc.) is
// handled via chainable methods before calling Build().
type Option[V any] func(pipz.Chainable[*Transaction[V]]) pipz.Chainable[*Transaction[V]]

// WithObserver appends a side-effecting stage that sees every transaction
// after it has been resolved and verified, immediately before commit. An
// observer error aborts the commit as a pipeline failure. Use for audit
// trails, change journals, or cross-controller notification.
func WithObserver[V any](name string, fn func(context.Context, *Transaction[V]) error) Option[V] {
	return func(p pipz.Chainable[*Transaction[V]]) pipz.Chainable[*Transaction[V]] {
		return pipz.NewSequence("observed", p, pipz.Effect(pipz.Name(name), fn))
	}
}

// WithTimeout wraps the pipeline with a deadline. Resolvers and verifiers
// are expected to be fast pure functions; a timeout converts a stuck one
// into a pipeline failure instead of a frozen event loop.
func WithTimeout[V any](d time.Duration) Option[V] {
	return func(p pipz.Chainable[*Transaction[V]]) pipz.Chainable[*Transaction[V]] {
		return pipz.NewTimeout("timeout", p, d)
	}
}

// WithErrorHandler adds error observation to the pipeline. Rejections and
// derivation failures are passed to the handler for logging, metrics, or
// alerting, but still propagate. Use this for observability, not recovery.
func WithErrorHandler[V any](handler pipz.Chainable[*pipz.Error[*Transaction[V]]]) Option[V] {
	return func(p pipz.Chainable[*Transaction[V]]) pipz.Chainable[*Transaction[V]] {
		return pipz.NewHandle("error-handler", p, handler)
	}
}

// WithRetry wraps the pipeline with retry logic. Resolvers and verifiers are
// pure, so this only earns its keep when an observer stage reaches out to
// something fallible like a change journal.
func WithRetry[V any](maxAttempts int) Option[V] {
	return func(p pipz.Chainable[*Transaction[V]]) pipz.Chainable[*Transaction[V]] {
		return pipz.NewRetry("retry", p, maxAttempts)
	}
}

// WithBackoff wraps the pipeline with exponential backoff retry logic.
// Failed transactions are retried with increasing delays: baseDelay,
// 2*baseDelay, 4*baseDelay, and so on.
func WithBackoff[V any](maxAttempts int, baseDelay time.Duration) Option[V] {
	return func(p pipz.Chainable[*Transaction[V]]) pipz.Chainable[*Transaction[V]] {
		return pipz.NewBackoff("backoff", p, maxAttempts, baseDelay)
	}
}

// WithMiddleware prepends processors to the pipeline. Processors execute in
// order before resolution and verification; use them to normalize or annotate
// a transaction's partial before the resolver sees it.
//
// Use the Use* functions to create processors for common patterns, or provide
// custom pipz.Chainable implementations directly.
func WithMiddleware[V any](processors ...pipz.Chainable[*Transaction[V]]) Option[V] {
	return func(p pipz.Chainable[*Transaction[V]]) pipz.Chainable[*Transaction[V]] {
		all := make([]pipz.Chainable[*Transaction[V]], 0, len(processors)+1)
		all = append(all, processors...)
		all = append(all, p)
		return pipz.NewSequence("middleware", all...)
	}
}

// UseApply creates a processor that can transform the transaction and fail.
// Runs before resolution, so mutating tx.Partial here changes what the
// resolver sees.
func UseApply[V any](name string, fn func(context.Context, *Transaction[V]) (*Transaction[V], error)) pipz.Chainable[*Transaction[V]] {
	return pipz.Apply(pipz.Name(name), fn)
}

// UseEffect creates a processor that performs a side effect. The transaction
// passes through unchanged.
func UseEffect[V any](name string, fn func(context.Context, *Transaction[V]) error) pipz.Chainable[*Transaction[V]] {
	return pipz.Effect(pipz.Name(name), fn)
}

// UseFilter wraps a processor with a condition. If the condition returns
// false, the transaction passes through unchanged.
func UseFilter[V any](name string, condition func(context.Context, *Transaction[V]) bool, processor pipz.Chainable[*Transaction[V]]) pipz.Chainable[*Transaction[V]] {
	return pipz.NewFilter(pipz.Name(name), condition, processor)
}
