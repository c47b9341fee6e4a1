package cohere

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestConnect_SyncPullAdoptsCellValue(t *testing.T) {
	loop := newTestLoop(t)
	ctrl := mustBuild(t, New("test", loop, testSchema, testInitial, sumResolver(), sumVerifier(100)))
	defer ctrl.Dispose()

	cell := NewValue(40)
	if err := ctrl.Connect("a", cell, SyncPull); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// The cell value went through resolve and verify like any other input.
	snap := ctrl.Snapshot()
	if snap["a"] != 40 || snap["sum"] != 42 {
		t.Errorf("expected pulled value derived into snapshot, got %v", snap)
	}
}

func TestConnect_SyncPullRejectionFailsConnect(t *testing.T) {
	loop := newTestLoop(t)
	ctrl := mustBuild(t, New("test", loop, testSchema, testInitial, sumResolver(), sumVerifier(100)))
	defer ctrl.Dispose()

	cell := NewValue(500)
	err := ctrl.Connect("a", cell, SyncPull)

	var be *BindingError
	if !errors.As(err, &be) {
		t.Fatalf("expected BindingError, got %v", err)
	}
	if ctrl.Connected("a") {
		t.Error("binding established despite rejected initial pull")
	}
	if v, _ := ctrl.Get("a"); v != 1 {
		t.Errorf("snapshot changed by rejected pull: a=%d", v)
	}
}

func TestConnect_SyncPushWritesControllerValue(t *testing.T) {
	loop := newTestLoop(t)
	ctrl := mustBuild(t, New("test", loop, testSchema, testInitial, sumResolver(), nil))
	defer ctrl.Dispose()

	cell := NewValue(0)
	if err := ctrl.Connect("a", cell, SyncPush); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if cell.Get() != 1 {
		t.Errorf("expected cell overwritten with controller value 1, got %d", cell.Get())
	}
}

type failingCell struct {
	Value[int]
}

func (c *failingCell) Set(int) error {
	return errors.New("cell is sealed")
}

func TestConnect_SyncPushFailureFailsConnect(t *testing.T) {
	loop := newTestLoop(t)
	ctrl := mustBuild(t, New("test", loop, testSchema, testInitial, sumResolver(), nil))
	defer ctrl.Dispose()

	cell := &failingCell{}
	err := ctrl.Connect("a", cell, SyncPush)

	var be *BindingError
	if !errors.As(err, &be) {
		t.Fatalf("expected BindingError, got %v", err)
	}
	if ctrl.Connected("a") {
		t.Error("binding established despite failed initial push")
	}
}

func TestConnect_SyncNoneLinksFutureChangesOnly(t *testing.T) {
	loop := newTestLoop(t)
	ctrl := mustBuild(t, New("test", loop, testSchema, testInitial, sumResolver(), nil))
	defer ctrl.Dispose()

	cell := NewValue(77)
	if err := ctrl.Connect("a", cell, SyncNone); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// Neither side moved at connect time.
	if v, _ := ctrl.Get("a"); v != 1 {
		t.Errorf("controller adopted cell value under SyncNone: a=%d", v)
	}
	if cell.Get() != 77 {
		t.Errorf("cell overwritten under SyncNone: %d", cell.Get())
	}
}

func TestConnect_ErrorsForInvalidKeys(t *testing.T) {
	loop := newTestLoop(t)
	ctrl := mustBuild(t, New("test", loop, testSchema, testInitial, sumResolver(), nil))
	defer ctrl.Dispose()

	cell := NewValue(0)
	cases := []struct {
		name string
		key  Key
	}{
		{"derived key", "sum"},
		{"unknown key", "nope"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var be *BindingError
			if err := ctrl.Connect(tc.key, cell, SyncNone); !errors.As(err, &be) {
				t.Fatalf("expected BindingError, got %v", err)
			}
		})
	}
}

func TestConnect_DuplicateKeyRejected(t *testing.T) {
	loop := newTestLoop(t)
	ctrl := mustBuild(t, New("test", loop, testSchema, testInitial, sumResolver(), nil))
	defer ctrl.Dispose()

	if err := ctrl.Connect("a", NewValue(0), SyncNone); err != nil {
		t.Fatalf("first Connect failed: %v", err)
	}
	var be *BindingError
	if err := ctrl.Connect("a", NewValue(0), SyncNone); !errors.As(err, &be) {
		t.Fatalf("expected BindingError for second Connect, got %v", err)
	}
}

func TestBinding_CellChangeFlowsThroughEngine(t *testing.T) {
	loop := newTestLoop(t)
	ctrl := mustBuild(t, New("test", loop, testSchema, testInitial, sumResolver(), sumVerifier(100)))
	defer ctrl.Dispose()

	cell := NewValue(1)
	if err := ctrl.Connect("a", cell, SyncNone); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	_ = cell.Set(50)
	drain(loop)

	snap := ctrl.Snapshot()
	if snap["a"] != 50 || snap["sum"] != 52 {
		t.Errorf("cell change bypassed derivation: %v", snap)
	}
}

func TestBinding_RejectedCellChangeLeavesSnapshot(t *testing.T) {
	loop := newTestLoop(t)
	ctrl := mustBuild(t, New("test", loop, testSchema, testInitial, sumResolver(), sumVerifier(100)))
	defer ctrl.Dispose()

	cell := NewValue(1)
	if err := ctrl.Connect("a", cell, SyncNone); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	_ = cell.Set(500)
	drain(loop)

	if v, _ := ctrl.Get("a"); v != 1 {
		t.Errorf("rejected cell value committed: a=%d", v)
	}
	// The cell keeps its value; only the controller side refused.
	if cell.Get() != 500 {
		t.Errorf("cell value rewritten after rejection: %d", cell.Get())
	}
}

func TestBinding_CommitsPushedToBoundCells(t *testing.T) {
	loop := newTestLoop(t)
	ctrl := mustBuild(t, New("test", loop, testSchema, testInitial, sumResolver(), nil))
	defer ctrl.Dispose()

	cell := NewValue(1)
	if err := ctrl.Connect("a", cell, SyncNone); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	loop.Do(func() { _ = ctrl.SubmitValue("a", 9) })
	if cell.Get() != 9 {
		t.Errorf("committed value not pushed to cell: %d", cell.Get())
	}
}

func TestBinding_EchoSuppression(t *testing.T) {
	loop := newTestLoop(t)

	var resolves atomic.Int32
	resolver := ResolverFunc[int](func(current, changed Snapshot[int]) (Snapshot[int], error) {
		resolves.Add(1)
		return sumResolver().Resolve(current, changed)
	})
	ctrl := mustBuild(t, New("test", loop, testSchema, testInitial, resolver, nil))
	defer ctrl.Dispose()

	cell := NewValue(1)
	if err := ctrl.Connect("a", cell, SyncNone); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// A commit pushes to the cell; the cell notifies; the notification must
	// be recognized as our own echo and dropped, not resubmitted.
	loop.Do(func() { _ = ctrl.SubmitValue("a", 9) })
	drain(loop)
	time.Sleep(10 * time.Millisecond)
	drain(loop)

	if resolves.Load() != 1 {
		t.Errorf("echo resubmitted through the engine: %d resolves", resolves.Load())
	}
}

func TestBinding_TwoControllersShareOneCell(t *testing.T) {
	loop := newTestLoop(t)
	left := mustBuild(t, New("left", loop, testSchema, testInitial, sumResolver(), nil))
	defer left.Dispose()
	right := mustBuild(t, New("right", loop, testSchema, testInitial, sumResolver(), nil))
	defer right.Dispose()

	cell := NewValue(1)
	if err := left.Connect("a", cell, SyncNone); err != nil {
		t.Fatalf("Connect left failed: %v", err)
	}
	if err := right.Connect("a", cell, SyncNone); err != nil {
		t.Fatalf("Connect right failed: %v", err)
	}

	// A commit on the left propagates through the shared cell to the right,
	// fully derived on each side.
	loop.Do(func() { _ = left.SubmitValue("a", 30) })
	drain(loop)
	time.Sleep(10 * time.Millisecond)
	drain(loop)

	if v, _ := right.Get("a"); v != 30 {
		t.Errorf("change did not propagate across the shared cell: a=%d", v)
	}
	if v, _ := right.Get("sum"); v != 32 {
		t.Errorf("propagated change skipped derivation: sum=%d", v)
	}
}

func TestDisconnect_StopsPropagation(t *testing.T) {
	loop := newTestLoop(t)
	ctrl := mustBuild(t, New("test", loop, testSchema, testInitial, sumResolver(), nil))
	defer ctrl.Dispose()

	cell := NewValue(1)
	if err := ctrl.Connect("a", cell, SyncNone); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := ctrl.Disconnect("a"); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if ctrl.Connected("a") {
		t.Error("binding still reported connected")
	}

	_ = cell.Set(50)
	drain(loop)
	if v, _ := ctrl.Get("a"); v != 1 {
		t.Errorf("disconnected cell still drives the controller: a=%d", v)
	}

	loop.Do(func() { _ = ctrl.SubmitValue("a", 7) })
	if cell.Get() != 50 {
		t.Errorf("controller still pushes to disconnected cell: %d", cell.Get())
	}
}

func TestDisconnect_UnknownBinding(t *testing.T) {
	loop := newTestLoop(t)
	ctrl := mustBuild(t, New("test", loop, testSchema, testInitial, sumResolver(), nil))
	defer ctrl.Dispose()

	var be *BindingError
	if err := ctrl.Disconnect("a"); !errors.As(err, &be) {
		t.Fatalf("expected BindingError, got %v", err)
	}
}

func TestBinding_PushFailureDoesNotAbortCommit(t *testing.T) {
	loop := newTestLoop(t)
	ctrl := mustBuild(t, New("test", loop, testSchema, testInitial, sumResolver(), nil))
	defer ctrl.Dispose()

	cell := &failingCell{}
	if err := ctrl.Connect("a", cell, SyncNone); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	var err error
	loop.Do(func() { err = ctrl.SubmitValue("a", 9) })
	if err != nil {
		t.Fatalf("commit aborted by failing cell push: %v", err)
	}
	if v, _ := ctrl.Get("a"); v != 9 {
		t.Errorf("expected commit despite push failure, got a=%d", v)
	}
}

func TestDispose_DisconnectsBindings(t *testing.T) {
	loop := newTestLoop(t)
	ctrl := mustBuild(t, New("test", loop, testSchema, testInitial, sumResolver(), nil))

	cell := NewValue(1)
	if err := ctrl.Connect("a", cell, SyncNone); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	ctrl.Dispose()

	_ = cell.Set(50)
	drain(loop)
	if snap := ctrl.Snapshot(); snap["a"] != 1 {
		t.Errorf("disposed controller processed a cell change: %v", snap)
	}
}
