package cohere

// Lifecycle represents the current lifecycle phase of a controller or
// composition. The progression is strictly forward; LifecycleDisposed is
// terminal and disposal is idempotent.
type Lifecycle int32

const (
	// LifecycleConstructed indicates the node is being built and has not yet
	// queued its initial refresh.
	LifecycleConstructed Lifecycle = iota

	// LifecycleActive indicates the node is fully operational.
	LifecycleActive

	// LifecycleDisposing indicates teardown has begun. Enqueued refreshes and
	// new submissions become no-ops.
	LifecycleDisposing

	// LifecycleDisposed indicates teardown has completed. Terminal.
	LifecycleDisposed
)

// String returns the string representation of the lifecycle phase.
func (l Lifecycle) String() string {
	switch l {
	case LifecycleConstructed:
		return "constructed"
	case LifecycleActive:
		return "active"
	case LifecycleDisposing:
		return "disposing"
	case LifecycleDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}
