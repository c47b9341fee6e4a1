package cohere

import "sync"

// rejectionRing is a thread-safe ring buffer of recent rejection errors.
type rejectionRing struct {
	mu     sync.RWMutex
	errors []error
	size   int
	head   int
	count  int
}

// newRejectionRing creates a ring buffer with the given capacity.
// If size is 0, the ring buffer is disabled.
func newRejectionRing(size int) *rejectionRing {
	if size <= 0 {
		return nil
	}
	return &rejectionRing{
		errors: make([]error, size),
		size:   size,
	}
}

// push adds an error to the ring buffer.
func (r *rejectionRing) push(err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors[r.head] = err
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// all returns all errors in the ring buffer, oldest first.
func (r *rejectionRing) all() []error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return nil
	}

	result := make([]error, r.count)
	start := (r.head - r.count + r.size) % r.size
	for i := 0; i < r.count; i++ {
		result[i] = r.errors[(start+i)%r.size]
	}
	return result
}
