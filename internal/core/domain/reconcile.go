package domain

import "time"

// ReconcilerConfig holds the tunable timings and caps of the reconciler.
// The defaults are observed-in-practice values, not derived constants;
// they are configuration, never hard-coded assumptions.
type ReconcilerConfig struct {
	// Debounce is how long a queued path must stay quiet before it is
	// eligible for indexing. Repeat events reset the window.
	Debounce time.Duration

	// ReconcileInterval is the cadence of the periodic bidirectional
	// scan that catches missed events.
	ReconcileInterval time.Duration

	// IdleThreshold is how long the environment must be free of user
	// activity before background indexing may start.
	IdleThreshold time.Duration

	// BatchSize caps how many stale documents one reconciliation cycle
	// may process. The remainder waits for the next cycle.
	BatchSize int

	// SaveInterval is the dirty-flag persistence cadence for the index
	// snapshot. A flush also happens unconditionally on shutdown.
	SaveInterval time.Duration
}

// DefaultReconcilerConfig returns the standard timings.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Debounce:          3 * time.Second,
		ReconcileInterval: 60 * time.Second,
		IdleThreshold:     2 * time.Minute,
		BatchSize:         10,
		SaveInterval:      30 * time.Second,
	}
}

// ReconcilerStatus is a point-in-time view of the reconciler, suitable
// for a "processing in N seconds" display.
type ReconcilerStatus struct {
	// Running reports whether the worker loop is active.
	Running bool

	// QueueDepth is the number of paths waiting in the debounce queue.
	QueueDepth int

	// IdleWait is how long until idle gating permits indexing.
	// Zero when the environment is already considered idle.
	IdleWait time.Duration

	// Indexing reports whether a pass is currently processing a batch.
	Indexing bool

	// LastReconcile is when the last periodic scan completed.
	LastReconcile time.Time

	// DocumentsIndexed counts documents processed since Start.
	DocumentsIndexed int
}
