package domain

import (
	"testing"
	"time"
)

func TestQueueItem_Due(t *testing.T) {
	enqueued := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	item := QueueItem{Path: "a.md", Kind: QueueIndex, EnqueuedAt: enqueued}
	debounce := 3 * time.Second

	if item.Due(enqueued.Add(2*time.Second), debounce) {
		t.Error("item due inside the debounce window")
	}
	if !item.Due(enqueued.Add(3*time.Second), debounce) {
		t.Error("item not due at the window boundary")
	}
	if !item.Due(enqueued.Add(time.Minute), debounce) {
		t.Error("item not due after the window")
	}
}
