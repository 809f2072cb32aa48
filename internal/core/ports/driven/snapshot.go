package driven

import "context"

// Snapshot is the persisted index state: an opaque payload tagged with
// the schema version that produced it.
type Snapshot struct {
	// SchemaVersion identifies the on-disk format. A stored snapshot
	// whose version is older than the running engine's is discarded in
	// full, never partially migrated.
	SchemaVersion int

	// Payload is the serialized index, opaque to the store.
	Payload []byte
}

// SnapshotStore persists index snapshots.
type SnapshotStore interface {
	// Save replaces the stored snapshot.
	Save(ctx context.Context, snap Snapshot) error

	// Load returns the stored snapshot, or domain.ErrNotFound when no
	// snapshot has been saved yet.
	Load(ctx context.Context) (*Snapshot, error)

	// Close releases resources.
	Close() error
}
