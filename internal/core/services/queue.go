package services

import (
	"sync"
	"time"

	"github.com/notelens-io/notelens/internal/core/domain"
)

// debounceQueue holds pending reconciliation work keyed by path.
// A repeat event for a queued path resets its debounce window instead
// of adding a duplicate; a path becomes eligible only after staying
// quiet for the full window.
type debounceQueue struct {
	mu    sync.Mutex
	items map[string]domain.QueueItem
}

func newDebounceQueue() *debounceQueue {
	return &debounceQueue{items: make(map[string]domain.QueueItem)}
}

// Put enqueues work for a path, resetting the debounce window.
// A delete arriving for a path queued to index replaces it; the
// reconciler handles the final state, not the event history.
func (q *debounceQueue) Put(path string, kind domain.QueueKind, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[path] = domain.QueueItem{
		Path:       path,
		Kind:       kind,
		EnqueuedAt: now,
	}
}

// PutRename enqueues a rename, carrying the origin path. Any work
// queued under the old path is dropped; the rename supersedes it.
func (q *debounceQueue) PutRename(oldPath, newPath string, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.items, oldPath)
	q.items[newPath] = domain.QueueItem{
		Path:       newPath,
		Kind:       domain.QueueRename,
		OldPath:    oldPath,
		EnqueuedAt: now,
	}
}

// TakeDue removes and returns up to max items whose debounce window has
// elapsed at now. Items still inside their window stay queued.
func (q *debounceQueue) TakeDue(now time.Time, debounce time.Duration, max int) []domain.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []domain.QueueItem
	for path, item := range q.items {
		if len(due) == max {
			break
		}
		if item.Due(now, debounce) {
			due = append(due, item)
			delete(q.items, path)
		}
	}
	return due
}

// Requeue puts an item back without resetting its window, so a
// deferred item stays immediately eligible once the deferral reason
// clears. A newer event for the same path wins over the requeue.
func (q *debounceQueue) Requeue(item domain.QueueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.items[item.Path]; exists {
		return
	}
	q.items[item.Path] = item
}

// Len returns the number of queued paths.
func (q *debounceQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
