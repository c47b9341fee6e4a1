package cohere

import "github.com/zoobzio/capitan"

// Controller lifecycle signals.
var (
	// ControllerCreated is emitted when a controller finishes construction.
	ControllerCreated = capitan.NewSignal(
		"cohere.controller.created",
		"Controller constructed",
	)

	// ControllerDisposed is emitted when a controller completes teardown.
	ControllerDisposed = capitan.NewSignal(
		"cohere.controller.disposed",
		"Controller disposed",
	)

	// ControllerRefreshed is emitted after a coalesced refresh runs.
	ControllerRefreshed = capitan.NewSignal(
		"cohere.controller.refreshed",
		"Coalesced refresh delivered",
	)

	// RefreshPanicked is emitted when a refresh callback panics. The
	// internal-update and signals-blocked flags are cleared regardless.
	RefreshPanicked = capitan.NewSignal(
		"cohere.controller.refresh.panicked",
		"Refresh callback panicked",
	)
)

// Transaction signals.
var (
	// TransactionAccepted is emitted when a candidate snapshot commits.
	TransactionAccepted = capitan.NewSignal(
		"cohere.transaction.accepted",
		"Candidate snapshot committed",
	)

	// TransactionRejected is emitted when the verifier rejects a candidate
	// or the partial update is malformed. The snapshot is unchanged.
	TransactionRejected = capitan.NewSignal(
		"cohere.transaction.rejected",
		"Candidate snapshot rejected",
	)

	// DerivationFailed is emitted when the resolver cannot complete a
	// candidate for the submitted changed-key subset.
	DerivationFailed = capitan.NewSignal(
		"cohere.transaction.derivation.failed",
		"Resolver could not complete candidate",
	)

	// PipelineFailed is emitted when transaction middleware fails after
	// resolution and verification succeeded.
	PipelineFailed = capitan.NewSignal(
		"cohere.transaction.pipeline.failed",
		"Transaction middleware failed",
	)
)

// Binding signals.
var (
	// BindingConnected is emitted when an external cell is connected.
	BindingConnected = capitan.NewSignal(
		"cohere.binding.connected",
		"External cell connected",
	)

	// BindingDisconnected is emitted when an external cell is disconnected.
	BindingDisconnected = capitan.NewSignal(
		"cohere.binding.disconnected",
		"External cell disconnected",
	)

	// BindingPushFailed is emitted when writing a committed value to a bound
	// cell fails. Non-fatal; the snapshot remains committed.
	BindingPushFailed = capitan.NewSignal(
		"cohere.binding.push.failed",
		"Write to bound cell failed",
	)
)

// Composition signals.
var (
	// CompositionAdopted is emitted when the pre-dispose sweep finds a
	// reachable node that was never explicitly registered.
	CompositionAdopted = capitan.NewSignal(
		"cohere.composition.adopted",
		"Unregistered reachable node adopted before disposal",
	)

	// CompositionNodeFailed is emitted when a node fails during disposal.
	// Sibling disposal continues.
	CompositionNodeFailed = capitan.NewSignal(
		"cohere.composition.node.failed",
		"Node disposal failed",
	)
)

// Loop signals.
var (
	// LoopJobPanicked is emitted when a posted job panics on the loop.
	LoopJobPanicked = capitan.NewSignal(
		"cohere.loop.job.panicked",
		"Posted job panicked",
	)
)
