package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	indexmem "github.com/notelens-io/notelens/internal/adapters/driven/index/memory"
	snapmem "github.com/notelens-io/notelens/internal/adapters/driven/snapshot/memory"
	"github.com/notelens-io/notelens/internal/chunker"
	"github.com/notelens-io/notelens/internal/core/domain"
	"github.com/notelens-io/notelens/internal/core/ports/driven"
)

type reconcilerFixture struct {
	source     *mockSource
	activity   *mockActivity
	index      *indexmem.Index
	snapshots  driven.SnapshotStore
	reconciler *ReconcilerService
}

func newReconcilerFixture(t *testing.T, cfg domain.ReconcilerConfig) *reconcilerFixture {
	t.Helper()

	source := newMockSource()
	activity := newMockActivity()
	index := indexmem.New(0, "")
	snapshots := snapmem.NewStore()
	ch := chunker.New(chunker.WithMinSize(10))
	indexer := NewIndexer(source, index, nil, ch)

	return &reconcilerFixture{
		source:     source,
		activity:   activity,
		index:      index,
		snapshots:  snapshots,
		reconciler: NewReconcilerService(source, index, indexer, snapshots, activity, cfg),
	}
}

func TestReconcileOnce_IndexesNewDocuments(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, domain.DefaultReconcilerConfig())

	f.source.add("a.md", "alpha content", time.Now())
	f.source.add("b.md", "beta content", time.Now())

	processed, err := f.reconciler.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	stats, err := f.index.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
}

func TestReconcileOnce_DrainsBeyondOneBatch(t *testing.T) {
	ctx := context.Background()
	cfg := domain.DefaultReconcilerConfig()
	cfg.BatchSize = 2
	f := newReconcilerFixture(t, cfg)

	for _, p := range []string{"a.md", "b.md", "c.md", "d.md", "e.md"} {
		f.source.add(p, "content of "+p, time.Now())
	}

	processed, err := f.reconciler.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, processed, "the one-shot command drains the whole queue")
}

func TestReconcileOnce_DetectsStaleDocuments(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, domain.DefaultReconcilerConfig())

	t0 := time.Now().Add(-time.Hour)
	f.source.add("a.md", "old content", t0)
	_, err := f.reconciler.ReconcileOnce(ctx)
	require.NoError(t, err)

	// Unchanged store: nothing to do.
	processed, err := f.reconciler.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)

	// The edit advances the modification time.
	f.source.add("a.md", "new content", t0.Add(time.Minute))
	processed, err = f.reconciler.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	hits, err := f.index.SearchKeyword(ctx, "new", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestReconcileOnce_RemovesOrphans(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, domain.DefaultReconcilerConfig())

	f.source.add("keep.md", "keep me", time.Now())
	f.source.add("drop.md", "drop me", time.Now())
	_, err := f.reconciler.ReconcileOnce(ctx)
	require.NoError(t, err)

	// Deleted while the watcher was not running.
	f.source.remove("drop.md")
	_, err = f.reconciler.ReconcileOnce(ctx)
	require.NoError(t, err)

	paths, err := f.index.Paths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.md"}, paths)
}

func TestReconcileOnce_SavesSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, domain.DefaultReconcilerConfig())

	f.source.add("a.md", "persist me", time.Now())
	_, err := f.reconciler.ReconcileOnce(ctx)
	require.NoError(t, err)

	snap, err := f.snapshots.Load(ctx)
	require.NoError(t, err, "a successful pass persists the index")
	assert.NotEmpty(t, snap.Payload)
}

func TestNotify_QueuesWork(t *testing.T) {
	f := newReconcilerFixture(t, domain.DefaultReconcilerConfig())

	f.reconciler.Notify(domain.Change{Kind: domain.ChangeModified, Path: "a.md"})
	f.reconciler.Notify(domain.Change{Kind: domain.ChangeDeleted, Path: "b.md"})
	f.reconciler.Notify(domain.Change{Kind: domain.ChangeRenamed, Path: "new.md", OldPath: "old.md"})

	assert.Equal(t, 3, f.reconciler.Status().QueueDepth)
}

func TestProcessRename_ContentUnchangedMovesChunks(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, domain.DefaultReconcilerConfig())

	mtime := time.Now().Add(-time.Hour)
	f.source.add("old.md", "stable content", mtime)
	_, err := f.reconciler.ReconcileOnce(ctx)
	require.NoError(t, err)

	// The move keeps the mtime; only the path changed.
	f.source.remove("old.md")
	f.source.add("new.md", "stable content", mtime)

	err = f.reconciler.processItem(ctx, domain.QueueItem{
		Path: "new.md", Kind: domain.QueueRename, OldPath: "old.md",
	})
	require.NoError(t, err)

	paths, err := f.index.Paths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new.md"}, paths)

	chunks, err := f.index.ChunksForDocument(ctx, "new.md")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "stable content", chunks[0].Content)
}

func TestProcessRename_ContentChangedReindexes(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, domain.DefaultReconcilerConfig())

	f.source.add("old.md", "original", time.Now().Add(-time.Hour))
	_, err := f.reconciler.ReconcileOnce(ctx)
	require.NoError(t, err)

	// Moved and edited: the indexed mtime no longer matches.
	f.source.remove("old.md")
	f.source.add("new.md", "rewritten text", time.Now())

	err = f.reconciler.processItem(ctx, domain.QueueItem{
		Path: "new.md", Kind: domain.QueueRename, OldPath: "old.md",
	})
	require.NoError(t, err)

	hits, err := f.index.SearchKeyword(ctx, "rewritten", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	paths, err := f.index.Paths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new.md"}, paths)
}

func TestProcessBatch_DefersActiveDocuments(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t, domain.DefaultReconcilerConfig())

	f.source.add("busy.md", "being edited", time.Now())
	f.source.add("idle.md", "not touched", time.Now())
	f.activity.setActive("busy.md", true)

	items := []domain.QueueItem{
		{Path: "busy.md", Kind: domain.QueueIndex},
		{Path: "idle.md", Kind: domain.QueueIndex},
	}
	processed, err := f.reconciler.processBatch(ctx, items, true)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	// The active document stays queued for later, untouched.
	assert.Equal(t, 1, f.reconciler.Status().QueueDepth)
	_, err = f.index.DocumentMtime(ctx, "busy.md")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProcessBatch_CancelRequeuesOnlyUnseenItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newReconcilerFixture(t, domain.DefaultReconcilerConfig())

	f.source.add("busy.md", "being edited", time.Now())
	f.source.add("a.md", "first", time.Now())
	f.source.add("b.md", "second", time.Now())
	f.activity.setActive("busy.md", true)

	// Cancellation lands while a.md is being indexed.
	f.source.onRead = func(path string) {
		if path == "a.md" {
			cancel()
		}
	}

	items := []domain.QueueItem{
		{Path: "busy.md", Kind: domain.QueueIndex},
		{Path: "a.md", Kind: domain.QueueIndex},
		{Path: "b.md", Kind: domain.QueueIndex},
	}
	processed, err := f.reconciler.processBatch(ctx, items, true)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, processed)

	// The deferred and the unseen item wait for the next cycle; the
	// completed one must not be re-indexed.
	assert.Equal(t, 2, f.reconciler.queue.Len())
	_, queued := f.reconciler.queue.items["a.md"]
	assert.False(t, queued)
}

func TestIdleGating(t *testing.T) {
	cfg := domain.DefaultReconcilerConfig()
	cfg.IdleThreshold = 2 * time.Minute
	f := newReconcilerFixture(t, cfg)

	f.activity.setLastActivity(time.Now())
	assert.False(t, f.reconciler.idle(), "recent activity blocks background work")

	f.activity.setLastActivity(time.Now().Add(-3 * time.Minute))
	assert.True(t, f.reconciler.idle())
}

func TestStatus_IdleWait(t *testing.T) {
	cfg := domain.DefaultReconcilerConfig()
	cfg.IdleThreshold = 2 * time.Minute
	f := newReconcilerFixture(t, cfg)

	f.activity.setLastActivity(time.Now())
	st := f.reconciler.Status()
	assert.Greater(t, st.IdleWait, time.Minute)

	f.activity.setLastActivity(time.Now().Add(-time.Hour))
	st = f.reconciler.Status()
	assert.Equal(t, time.Duration(0), st.IdleWait)
}

func TestLoadSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("missing snapshot starts fresh", func(t *testing.T) {
		f := newReconcilerFixture(t, domain.DefaultReconcilerConfig())
		assert.NoError(t, f.reconciler.LoadSnapshot(ctx))
	})

	t.Run("restores saved state", func(t *testing.T) {
		f := newReconcilerFixture(t, domain.DefaultReconcilerConfig())
		f.source.add("a.md", "persisted words", time.Now())
		_, err := f.reconciler.ReconcileOnce(ctx)
		require.NoError(t, err)

		// A new engine over the same store restores without rescanning.
		restored := indexmem.New(0, "")
		second := NewReconcilerService(f.source, restored, nil, f.snapshots, nil,
			domain.DefaultReconcilerConfig())
		require.NoError(t, second.LoadSnapshot(ctx))

		hits, err := restored.SearchKeyword(ctx, "persisted", 10)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("corrupt payload rebuilds from scratch", func(t *testing.T) {
		f := newReconcilerFixture(t, domain.DefaultReconcilerConfig())
		require.NoError(t, f.snapshots.Save(ctx, driven.Snapshot{
			SchemaVersion: indexmem.SchemaVersion,
			Payload:       []byte("not json at all"),
		}))

		require.NoError(t, f.reconciler.LoadSnapshot(ctx),
			"an unreadable snapshot is discarded, not fatal")

		// The engine still works: a scan rebuilds the index.
		f.source.add("a.md", "fresh content", time.Now())
		processed, err := f.reconciler.ReconcileOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, processed)
	})

	t.Run("outdated schema rebuilds from scratch", func(t *testing.T) {
		f := newReconcilerFixture(t, domain.DefaultReconcilerConfig())
		require.NoError(t, f.snapshots.Save(ctx, driven.Snapshot{
			SchemaVersion: indexmem.SchemaVersion - 1,
			Payload:       []byte(`{}`),
		}))

		require.NoError(t, f.reconciler.LoadSnapshot(ctx),
			"an outdated snapshot is discarded, not fatal")

		stats, err := f.index.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Chunks)
	})
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	cfg := domain.DefaultReconcilerConfig()
	cfg.ReconcileInterval = time.Hour // keep the loop quiet
	cfg.SaveInterval = time.Hour
	f := newReconcilerFixture(t, cfg)

	f.source.add("a.md", "startup content", time.Now())

	errCh := make(chan error, 1)
	go func() {
		errCh <- f.reconciler.Start(ctx)
	}()

	// Wait for the worker to come up.
	require.Eventually(t, func() bool {
		return f.reconciler.Status().Running
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, f.reconciler.Stop())
	require.NoError(t, <-errCh)
	assert.False(t, f.reconciler.Status().Running)

	// Stopping twice is fine.
	assert.NoError(t, f.reconciler.Stop())
}

func TestStart_AlreadyRunning(t *testing.T) {
	ctx := context.Background()
	cfg := domain.DefaultReconcilerConfig()
	cfg.ReconcileInterval = time.Hour
	cfg.SaveInterval = time.Hour
	f := newReconcilerFixture(t, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- f.reconciler.Start(ctx)
	}()
	require.Eventually(t, func() bool {
		return f.reconciler.Status().Running
	}, time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, f.reconciler.Start(ctx), domain.ErrReconcilerRunning)

	require.NoError(t, f.reconciler.Stop())
	require.NoError(t, <-errCh)
}
