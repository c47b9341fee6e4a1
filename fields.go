package cohere

import "github.com/zoobzio/capitan"

// Field keys for controller events.
var (
	// KeyController is the unique instance ID of the controller.
	KeyController = capitan.NewStringKey("controller")

	// KeyName is the human-readable controller name.
	KeyName = capitan.NewStringKey("name")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyOrigin is the origin of a transaction.
	KeyOrigin = capitan.NewStringKey("origin")

	// KeyKeys is the changed-key subset of a transaction.
	KeyKeys = capitan.NewStringKey("keys")

	// KeyField is the field key of a binding event.
	KeyField = capitan.NewStringKey("field")

	// KeyMode is the initial-sync mode of a binding.
	KeyMode = capitan.NewStringKey("mode")

	// KeyDebounce is the configured debounce duration.
	KeyDebounce = capitan.NewDurationKey("debounce")

	// KeyNode is the concrete type name of a composition node.
	KeyNode = capitan.NewStringKey("node")

	// KeyLifecycle is the lifecycle phase after a transition.
	KeyLifecycle = capitan.NewStringKey("lifecycle")
)
