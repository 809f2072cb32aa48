package domain

import "time"

// QueueKind describes what a queued path needs.
type QueueKind string

const (
	// QueueIndex means the path must be (re)indexed.
	QueueIndex QueueKind = "index"

	// QueueDelete means the path's chunks must be removed.
	QueueDelete QueueKind = "delete"

	// QueueRename means the path moved; OldPath carries the origin.
	QueueRename QueueKind = "rename"
)

// QueueItem is a pending piece of reconciliation work. Items are
// deduplicated by path: a new event for an already-queued path resets
// its debounce timer rather than creating a duplicate entry.
type QueueItem struct {
	// Path is the document path this item refers to.
	Path string

	// Kind is the action to take.
	Kind QueueKind

	// OldPath is the previous path for rename items, empty otherwise.
	OldPath string

	// EnqueuedAt is when the most recent event for this path arrived.
	// The debounce window is measured from here.
	EnqueuedAt time.Time
}

// Due reports whether the item's debounce window has elapsed at now.
func (q QueueItem) Due(now time.Time, debounce time.Duration) bool {
	return !now.Before(q.EnqueuedAt.Add(debounce))
}

// ChangeKind classifies a document store notification.
type ChangeKind string

const (
	// ChangeCreated is a newly created document.
	ChangeCreated ChangeKind = "created"

	// ChangeModified is an edit to an existing document.
	ChangeModified ChangeKind = "modified"

	// ChangeDeleted is a removed document.
	ChangeDeleted ChangeKind = "deleted"

	// ChangeRenamed is a moved document; OldPath carries the origin.
	ChangeRenamed ChangeKind = "renamed"
)

// Change is a single document store notification.
type Change struct {
	// Kind classifies the event.
	Kind ChangeKind

	// Path is the affected document path (the new path for renames).
	Path string

	// OldPath is the previous path for renames, empty otherwise.
	OldPath string
}
