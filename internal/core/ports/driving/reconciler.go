package driving

import (
	"context"

	"github.com/notelens-io/notelens/internal/core/domain"
)

// Reconciler keeps the index synchronized with the external store.
type Reconciler interface {
	// Start runs the worker loop until the context is cancelled or Stop
	// is called. It blocks.
	Start(ctx context.Context) error

	// Stop shuts the worker down, flushing any pending snapshot.
	Stop() error

	// Notify enqueues a change notification. Producers only enqueue;
	// they never mutate the index directly.
	Notify(change domain.Change)

	// ReconcileOnce performs a single bidirectional scan and processes
	// one batch of stale documents, bypassing idle gating. Used by the
	// one-shot CLI index command.
	ReconcileOnce(ctx context.Context) (int, error)

	// Status returns a point-in-time view of the reconciler.
	Status() domain.ReconcilerStatus
}
