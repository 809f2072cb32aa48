package driven

import (
	"context"
	"time"

	"github.com/notelens-io/notelens/internal/core/domain"
)

// DocumentSource is the engine's view of the external document store.
// The store is mutated out-of-band; the engine only observes it through
// enumeration, reads, and change notifications.
type DocumentSource interface {
	// ListDocuments enumerates all documents with their metadata.
	// Content is not populated; use ReadContent for that.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// Stat returns the metadata of a single document.
	// Returns domain.ErrNotFound if the document no longer exists.
	Stat(ctx context.Context, path string) (*domain.Document, error)

	// ReadContent returns the full text of a document.
	// Returns domain.ErrNotFound if the document no longer exists.
	ReadContent(ctx context.Context, path string) (string, error)

	// Changes returns a channel of change notifications. The channel is
	// closed when the source is closed. Polling ListDocuments is an
	// acceptable substitute for sources that cannot watch.
	Changes() <-chan domain.Change

	// Close releases resources.
	Close() error
}

// ActivityMonitor reports user-activity signals used for idle gating
// and active-document deferral.
type ActivityMonitor interface {
	// LastActivity returns the time of the most recent user activity.
	LastActivity() time.Time

	// IsActiveDocument reports whether the path is currently open or
	// being edited. Active documents are deferred, not indexed.
	IsActiveDocument(path string) bool
}
