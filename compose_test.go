package cohere

import (
	"testing"
)

// recordingNode is a leaf that logs its own teardown.
type recordingNode struct {
	name     string
	log      *[]string
	disposed bool
}

func (n *recordingNode) Dispose() {
	if n.disposed {
		return
	}
	n.disposed = true
	*n.log = append(*n.log, n.name)
}

func (n *recordingNode) Disposed() bool { return n.disposed }

// recordingComposite owns children and logs its own bookkeeping.
type recordingComposite struct {
	recordingNode
	children []Node
}

func (c *recordingComposite) Nodes() []Node { return c.children }

func indexOf(log []string, name string) int {
	for i, n := range log {
		if n == name {
			return i
		}
	}
	return -1
}

func TestComposition_DisposeIsIdempotent(t *testing.T) {
	var log []string
	leaf := &recordingNode{name: "leaf", log: &log}

	comp := NewComposition()
	comp.Register(leaf)

	comp.Dispose()
	comp.Dispose()

	if !comp.Disposed() {
		t.Error("expected composition disposed")
	}
	if len(log) != 1 {
		t.Errorf("expected leaf disposed exactly once, got %v", log)
	}
}

func TestComposition_LeavesDisposedBeforeComposites(t *testing.T) {
	var log []string
	leaf1 := &recordingNode{name: "leaf1", log: &log}
	leaf2 := &recordingNode{name: "leaf2", log: &log}
	inner := &recordingComposite{
		recordingNode: recordingNode{name: "inner", log: &log},
		children:      []Node{leaf2},
	}

	// Registration order deliberately puts the composite first.
	comp := NewComposition()
	comp.Register(inner, leaf1)
	comp.Dispose()

	for _, leaf := range []string{"leaf1", "leaf2"} {
		if indexOf(log, leaf) > indexOf(log, "inner") {
			t.Errorf("composite finished before leaf %s: %v", leaf, log)
		}
	}
	if len(log) != 3 {
		t.Errorf("expected all 3 nodes disposed, got %v", log)
	}
}

func TestComposition_NestedCompositesDeepestFirst(t *testing.T) {
	var log []string
	leaf := &recordingNode{name: "leaf", log: &log}
	inner := &recordingComposite{
		recordingNode: recordingNode{name: "inner", log: &log},
		children:      []Node{leaf},
	}
	outer := &recordingComposite{
		recordingNode: recordingNode{name: "outer", log: &log},
		children:      []Node{inner},
	}

	comp := NewComposition()
	comp.Register(outer)
	comp.Dispose()

	// The leaf first, then composites bottom-up.
	if indexOf(log, "leaf") != 0 {
		t.Errorf("leaf was not disposed first: %v", log)
	}
	if indexOf(log, "inner") > indexOf(log, "outer") {
		t.Errorf("outer composite finished before inner: %v", log)
	}
}

// strayOwner is a registered node holding an unregistered one in an exported
// field.
type strayOwner struct {
	recordingNode
	Stray Node
}

func TestComposition_AdoptsUnregisteredReachableNodes(t *testing.T) {
	var log []string
	stray := &recordingNode{name: "stray", log: &log}
	owner := &strayOwner{
		recordingNode: recordingNode{name: "owner", log: &log},
		Stray:         stray,
	}

	comp := NewComposition()
	comp.Register(owner)
	comp.Dispose()

	if !stray.Disposed() {
		t.Error("unregistered reachable node was not adopted and disposed")
	}
}

type panickyNode struct {
	disposed bool
}

func (n *panickyNode) Dispose() {
	n.disposed = true
	panic("widget already deleted")
}

func (n *panickyNode) Disposed() bool { return n.disposed }

func TestComposition_NodeFailureDoesNotBlockSiblings(t *testing.T) {
	var log []string
	bad := &panickyNode{}
	good := &recordingNode{name: "good", log: &log}

	comp := NewComposition()
	comp.Register(bad, good)
	comp.Dispose()

	if !good.Disposed() {
		t.Error("sibling not disposed after another node panicked")
	}
	if !comp.Disposed() {
		t.Error("composition not disposed after node failure")
	}
}

func TestComposition_RegisterAfterDisposeIsNoOp(t *testing.T) {
	var log []string
	comp := NewComposition()
	comp.Dispose()

	leaf := &recordingNode{name: "late", log: &log}
	comp.Register(leaf)

	if len(comp.Nodes()) != 0 {
		t.Error("node registered after dispose")
	}
}

func TestComposition_DisposesControllers(t *testing.T) {
	loop := newTestLoop(t)
	left := mustBuild(t, New("left", loop, testSchema, testInitial, sumResolver(), nil))
	right := mustBuild(t, New("right", loop, testSchema, testInitial, sumResolver(), nil))

	comp := NewComposition()
	comp.Register(left, right)
	comp.Dispose()

	if !left.Disposed() || !right.Disposed() {
		t.Errorf("controllers not disposed: left=%s right=%s", left.Lifecycle(), right.Lifecycle())
	}
}

func TestComposition_IsItselfANode(t *testing.T) {
	var log []string
	leaf := &recordingNode{name: "leaf", log: &log}

	inner := NewComposition()
	inner.Register(leaf)

	outer := NewComposition()
	outer.Register(inner)
	outer.Dispose()

	if !inner.Disposed() {
		t.Error("nested composition not disposed by its parent")
	}
	if !leaf.Disposed() {
		t.Error("leaf under nested composition not disposed")
	}
}

func TestComposition_SharedNodeDisposedOnce(t *testing.T) {
	var log []string
	shared := &recordingNode{name: "shared", log: &log}
	a := &recordingComposite{
		recordingNode: recordingNode{name: "a", log: &log},
		children:      []Node{shared},
	}
	b := &recordingComposite{
		recordingNode: recordingNode{name: "b", log: &log},
		children:      []Node{shared},
	}

	comp := NewComposition()
	comp.Register(a, b)
	comp.Dispose()

	count := 0
	for _, n := range log {
		if n == "shared" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("shared node disposed %d times: %v", count, log)
	}
}
