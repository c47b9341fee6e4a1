package cohere

import "sort"

// Key identifies a single field owned by a controller. Keys are drawn from a
// fixed, closed set declared by the controller's Schema.
type Key string

// Snapshot maps every field key of a controller to its current value.
// Snapshots are treated as immutable: the engine clones before mutating, and
// accessors return copies. A snapshot that has been committed always satisfies
// the controller's verifier.
type Snapshot[V any] map[Key]V

// Clone returns a shallow copy of the snapshot.
func (s Snapshot[V]) Clone() Snapshot[V] {
	out := make(Snapshot[V], len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Keys returns the snapshot's keys in lexical order.
func (s Snapshot[V]) Keys() []Key {
	keys := make([]Key, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Schema declares the closed field set of a controller, partitioned into
// primary keys (externally writable) and derived keys (recomputed by the
// resolver, read-only to callers).
type Schema struct {
	Primary []Key
	Derived []Key
}

// IsPrimary reports whether k is a primary key of the schema.
func (s Schema) IsPrimary(k Key) bool {
	for _, p := range s.Primary {
		if p == k {
			return true
		}
	}
	return false
}

// IsDerived reports whether k is a derived key of the schema.
func (s Schema) IsDerived(k Key) bool {
	for _, d := range s.Derived {
		if d == k {
			return true
		}
	}
	return false
}

// Contains reports whether k is declared by the schema at all.
func (s Schema) Contains(k Key) bool {
	return s.IsPrimary(k) || s.IsDerived(k)
}

// All returns every declared key, primary first, each group in declaration order.
func (s Schema) All() []Key {
	all := make([]Key, 0, len(s.Primary)+len(s.Derived))
	all = append(all, s.Primary...)
	all = append(all, s.Derived...)
	return all
}

// validate checks that the schema is well formed: at least one primary key,
// no duplicates, no key in both partitions.
func (s Schema) validate() error {
	if len(s.Primary) == 0 {
		return &ConfigError{Reason: "schema declares no primary keys"}
	}
	seen := make(map[Key]bool, len(s.Primary)+len(s.Derived))
	for _, k := range s.All() {
		if seen[k] {
			return &ConfigError{Reason: "duplicate schema key " + string(k)}
		}
		seen[k] = true
	}
	return nil
}
