package cohere

import (
	"errors"
	"fmt"
)

// ErrDisposed is returned by operations on a controller whose lifecycle has
// reached LifecycleDisposed.
var ErrDisposed = errors.New("controller has been disposed")

// RejectionError reports that a candidate snapshot failed verification, or
// that a partial update was malformed (empty, unknown key, write to a derived
// key). The snapshot is unchanged and the UI is reverted via a refresh; the
// error is returned only to synchronous callers.
type RejectionError struct {
	Reason string
	Err    error // underlying verifier error, if any
}

func (e *RejectionError) Error() string {
	return "update rejected: " + e.Reason
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// DerivationError reports that the resolver could not produce a complete
// candidate for the given changed-key subset. Unlike a RejectionError this is
// a configuration defect, not a normal rejection: it fails loudly on
// synchronous submits and is signaled (never swallowed) on staged commits.
type DerivationError struct {
	Keys []Key
	Err  error
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("derivation failed for changed keys %v: %v", e.Keys, e.Err)
}

func (e *DerivationError) Unwrap() error {
	return e.Err
}

// BindingError reports a failure to establish or revoke an external binding:
// unknown or derived field key, already-connected key, a rejected initial
// pull, or a failed initial push. Reported at Connect/Disconnect time; the
// binding is not established.
type BindingError struct {
	Key    Key
	Reason string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("binding %q: %s", e.Key, e.Reason)
}

// ConfigError reports invalid construction-time configuration, such as a
// malformed schema, an incomplete initial snapshot, or an initial snapshot
// the verifier rejects.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return "invalid configuration: " + e.Reason + ": " + e.Err.Error()
	}
	return "invalid configuration: " + e.Reason
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
