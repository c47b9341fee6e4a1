package cohere

import (
	"fmt"
	"sort"
	"strings"
)

// Resolver derives the additional fields required to restore consistency
// after a partial update. It receives the committed snapshot and the changed
// keys with their proposed values, and returns every field that must change
// alongside them. Resolvers must be pure and deterministic in the changed-key
// subset, and total over every non-empty subset of primary keys the
// controller supports: an unsupported subset is a derivation failure, never a
// silent no-op.
//
// The engine never lets a resolver override a key literally present in the
// partial update; derived values only fill keys the caller did not touch.
type Resolver[V any] interface {
	Resolve(current, changed Snapshot[V]) (Snapshot[V], error)
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc[V any] func(current, changed Snapshot[V]) (Snapshot[V], error)

// Resolve implements Resolver.
func (f ResolverFunc[V]) Resolve(current, changed Snapshot[V]) (Snapshot[V], error) {
	return f(current, changed)
}

// CaseFunc handles one exact changed-key subset.
type CaseFunc[V any] func(current, changed Snapshot[V]) (Snapshot[V], error)

// Cases is a Resolver that dispatches on the exact set of changed keys: an
// explicit, independently testable handler table over "which keys are present
// in the partial" rather than an open chain of conditionals. A subset with no
// registered handler is a derivation failure.
//
//	cases := cohere.NewCases[any]("unit", "value").
//	    On(deriveFromUnit, "unit").
//	    On(deriveFromValue, "value").
//	    On(deriveFromBoth, "unit", "value")
//	if err := cases.Complete(); err != nil { ... }
type Cases[V any] struct {
	primary  []Key
	handlers map[string]CaseFunc[V]
}

// NewCases creates an empty case table over the given primary keys.
func NewCases[V any](primary ...Key) *Cases[V] {
	return &Cases[V]{
		primary:  primary,
		handlers: make(map[string]CaseFunc[V]),
	}
}

// On registers fn as the handler for the exact subset keys. Registering the
// same subset twice replaces the previous handler. Returns the table for
// chaining.
func (c *Cases[V]) On(fn CaseFunc[V], keys ...Key) *Cases[V] {
	c.handlers[subsetSignature(keys)] = fn
	return c
}

// Resolve implements Resolver by dispatching on the changed-key subset.
func (c *Cases[V]) Resolve(current, changed Snapshot[V]) (Snapshot[V], error) {
	keys := changed.Keys()
	fn, ok := c.handlers[subsetSignature(keys)]
	if !ok {
		return nil, &DerivationError{
			Keys: keys,
			Err:  fmt.Errorf("no case registered for subset %v", keys),
		}
	}
	return fn(current, changed)
}

// Complete verifies totality: every non-empty subset of the declared primary
// keys has a registered handler. Call it once after building the table,
// typically before constructing the controller.
func (c *Cases[V]) Complete() error {
	n := len(c.primary)
	for mask := 1; mask < 1<<n; mask++ {
		subset := make([]Key, 0, n)
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				subset = append(subset, c.primary[i])
			}
		}
		if _, ok := c.handlers[subsetSignature(subset)]; !ok {
			return fmt.Errorf("no case registered for subset %v", subset)
		}
	}
	return nil
}

// subsetSignature canonicalizes a key subset into a dispatch signature.
func subsetSignature(keys []Key) string {
	ks := make([]string, len(keys))
	for i, k := range keys {
		ks[i] = string(k)
	}
	sort.Strings(ks)
	return strings.Join(ks, "+")
}
