package cohere

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/zoobzio/capitan"
)

// Loop is the owning event loop for one or more controllers: a single
// goroutine draining a FIFO job queue. All controller state is mutated only
// on its loop; entry points called from other goroutines are re-posted here
// as fire-and-forget jobs rather than executed in place.
//
// Jobs run to completion in posting order. A job that panics is recovered
// and signaled; it never takes down the loop.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
	gid  int64
}

// NewLoop creates a Loop and starts its goroutine.
func NewLoop() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	ready := make(chan struct{})
	go l.run(ready)
	<-ready
	return l
}

func (l *Loop) run(ready chan struct{}) {
	l.mu.Lock()
	l.gid = goroutineID()
	l.mu.Unlock()
	close(ready)

	defer close(l.done)
	for {
		l.mu.Lock()
		jobs := l.queue
		l.queue = nil
		stopped := l.stopped
		l.mu.Unlock()

		for _, fn := range jobs {
			l.dispatch(fn)
		}

		if stopped {
			l.mu.Lock()
			empty := len(l.queue) == 0
			l.mu.Unlock()
			if empty {
				return
			}
			continue
		}

		if len(jobs) == 0 {
			<-l.wake
		}
	}
}

func (l *Loop) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			capitan.Emit(context.Background(), LoopJobPanicked,
				KeyError.Field(fmt.Sprint(r)),
			)
		}
	}()
	fn()
}

// Post enqueues fn for execution on the loop, first-in first-out relative to
// all other posted work. It never blocks and may be called from any
// goroutine, including from within a running job. After Stop it is a no-op.
func (l *Loop) Post(fn func()) {
	l.post(fn)
}

func (l *Loop) post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to complete. When called from the
// loop itself, fn runs inline. After Stop, fn is not run and Do returns
// immediately. Use Post instead when the caller must not block.
func (l *Loop) Do(fn func()) {
	if l.OnLoop() {
		fn()
		return
	}
	done := make(chan struct{})
	if !l.post(func() {
		defer close(done)
		fn()
	}) {
		return
	}
	<-done
}

// OnLoop reports whether the calling goroutine is the loop's own goroutine.
func (l *Loop) OnLoop() bool {
	l.mu.Lock()
	gid := l.gid
	l.mu.Unlock()
	return goroutineID() == gid
}

// Stop drains the remaining queue and shuts the loop down. Posts after Stop
// are dropped. Stop is idempotent and safe to call from the loop itself, in
// which case it does not wait for shutdown to complete.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		if !l.OnLoop() {
			<-l.done
		}
		return
	}
	l.stopped = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	if !l.OnLoop() {
		<-l.done
	}
}

// goroutineID extracts the runtime identifier of the calling goroutine from
// its stack header. This is the established technique for loop-affinity
// checks in single-threaded UI drivers; the identifier is used only for
// equality comparison.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if i := strings.IndexByte(s, ' '); i > 0 {
		if id, err := strconv.ParseInt(s[:i], 10, 64); err == nil {
			return id
		}
	}
	return -1
}
