package cohere

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/zoobzio/capitan"
)

// Node is a unit in the disposal hierarchy: anything with an idempotent
// teardown. Leaf controllers own a snapshot; composites own child nodes.
type Node interface {
	Dispose()
	Disposed() bool
}

// Composite is a Node that owns children. During disposal every reachable
// leaf is torn down before any composite completes its own bookkeeping,
// regardless of registration order, so dependents holding external bindings
// are released before the structures they hang off.
type Composite interface {
	Node
	Nodes() []Node
}

// Composition is a lifecycle root for a tree of controllers and nested
// compositions. It owns no widgets and no snapshot; it only knows which
// nodes exist and tears them down deterministically. Registration order does
// not matter: nodes coordinate through bindings, not through the
// composition.
type Composition struct {
	mu       sync.Mutex
	nodes    []Node
	disposed bool
}

// NewComposition creates an empty composition.
func NewComposition() *Composition {
	return &Composition{}
}

// Register records nodes for lifecycle management. The composition takes
// exclusive ownership of registered nodes.
func (c *Composition) Register(nodes ...Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.nodes = append(c.nodes, nodes...)
}

// Nodes returns the registered nodes in registration order.
func (c *Composition) Nodes() []Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Node, len(c.nodes))
	copy(out, c.nodes)
	return out
}

// Disposed reports whether Dispose has been called.
func (c *Composition) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// Dispose tears the whole tree down. It is idempotent: a second call is a
// no-op.
//
// Before disposing, the composition defensively sweeps for reachable nodes
// that were never explicitly registered (exported struct fields holding a
// Node), adopts them, and emits a non-fatal diagnostic. Disposal then proceeds by role: every reachable leaf first,
// then the composites, deepest first. A panic in one node's teardown is
// recovered and signaled and does not prevent disposal of its siblings.
func (c *Composition) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	roots := make([]Node, len(c.nodes))
	copy(roots, c.nodes)
	c.nodes = nil
	c.mu.Unlock()

	leaves, composites := collect(roots)
	for _, n := range leaves {
		safeDispose(n)
	}
	// Deepest first: children were collected after their parents.
	for i := len(composites) - 1; i >= 0; i-- {
		safeDispose(composites[i])
	}
}

// collect walks the tree breadth-first and partitions reachable nodes by
// role. Unregistered nodes found hanging off struct fields are adopted into
// the walk with a diagnostic.
func collect(roots []Node) (leaves, composites []Node) {
	seen := make(map[Node]bool)
	queue := make([]Node, 0, len(roots))

	add := func(n Node, adopted bool) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		queue = append(queue, n)
		if adopted {
			capitan.Emit(context.Background(), CompositionAdopted,
				KeyNode.Field(fmt.Sprintf("%T", n)),
			)
		}
	}
	for _, n := range roots {
		add(n, false)
	}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		if comp, ok := n.(Composite); ok {
			composites = append(composites, n)
			for _, child := range comp.Nodes() {
				add(child, false)
			}
		} else {
			leaves = append(leaves, n)
		}

		for _, stray := range strayNodes(n) {
			add(stray, true)
		}
	}
	return leaves, composites
}

// strayNodes reflects over a node's exported struct fields for Node values
// its owner forgot to register.
func strayNodes(n Node) []Node {
	v := reflect.ValueOf(n)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	nodeType := reflect.TypeOf((*Node)(nil)).Elem()
	var out []Node
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if !f.CanInterface() || !f.Type().Implements(nodeType) {
			continue
		}
		if f.Kind() == reflect.Pointer && f.IsNil() {
			continue
		}
		if stray, ok := f.Interface().(Node); ok {
			out = append(out, stray)
		}
	}
	return out
}

// safeDispose tears one node down, containing panics so sibling disposal
// always proceeds.
func safeDispose(n Node) {
	defer func() {
		if r := recover(); r != nil {
			capitan.Emit(context.Background(), CompositionNodeFailed,
				KeyNode.Field(fmt.Sprintf("%T", n)),
				KeyError.Field(fmt.Sprint(r)),
			)
		}
	}()
	n.Dispose()
}
