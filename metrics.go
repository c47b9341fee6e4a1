package cohere

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key controller events.
type MetricsProvider interface {
	// OnLifecycleChange is called when the controller transitions between
	// lifecycle phases.
	OnLifecycleChange(from, to Lifecycle)

	// OnTransactionAccepted is called when a candidate snapshot commits.
	// Duration is the time taken to merge, resolve, verify, and commit.
	OnTransactionAccepted(origin Origin, duration time.Duration)

	// OnTransactionRejected is called when a transaction fails at any stage.
	// Stage indicates where the failure occurred: "update", "resolve",
	// "verify", or "pipeline".
	OnTransactionRejected(origin Origin, stage string, duration time.Duration)

	// OnRefresh is called after a coalesced refresh is delivered.
	OnRefresh()
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnLifecycleChange(_, _ Lifecycle)                          {}
func (NoOpMetricsProvider) OnTransactionAccepted(_ Origin, _ time.Duration)           {}
func (NoOpMetricsProvider) OnTransactionRejected(_ Origin, _ string, _ time.Duration) {}
func (NoOpMetricsProvider) OnRefresh()                                                {}
