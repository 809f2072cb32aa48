package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/notelens-io/notelens/internal/core/domain"
	"github.com/notelens-io/notelens/internal/core/ports/driven"
	"github.com/notelens-io/notelens/internal/core/ports/driving"
	"github.com/notelens-io/notelens/internal/logger"
)

// Ensure ReconcilerService implements the interface.
var _ driving.Reconciler = (*ReconcilerService)(nil)

// queuePollInterval is how often the worker checks the debounce queue
// for due items. It only bounds wakeup latency, not correctness.
const queuePollInterval = time.Second

// ReconcilerService keeps the index synchronized with the document
// store. It owns a single worker goroutine: every index mutation flows
// through it, so the index never sees concurrent writers.
//
// Event producers (the watcher, Notify callers) only enqueue. The
// worker drains the debounce queue in capped batches, gated on user
// idleness, and runs a periodic bidirectional scan to catch events the
// watcher missed.
type ReconcilerService struct {
	source    driven.DocumentSource
	index     driven.Index
	indexer   *Indexer
	snapshots driven.SnapshotStore
	activity  driven.ActivityMonitor
	cfg       domain.ReconcilerConfig
	queue     *debounceQueue

	mu               sync.Mutex
	running          bool
	indexing         bool
	dirty            bool
	lastReconcile    time.Time
	documentsIndexed int
	cancel           context.CancelFunc
	done             chan struct{}
}

// NewReconcilerService creates a reconciler. The activity monitor is
// optional; without one the store is always considered idle.
func NewReconcilerService(
	source driven.DocumentSource,
	index driven.Index,
	indexer *Indexer,
	snapshots driven.SnapshotStore,
	activity driven.ActivityMonitor,
	cfg domain.ReconcilerConfig,
) *ReconcilerService {
	return &ReconcilerService{
		source:    source,
		index:     index,
		indexer:   indexer,
		snapshots: snapshots,
		activity:  activity,
		cfg:       cfg,
		queue:     newDebounceQueue(),
	}
}

// LoadSnapshot restores the index from the snapshot store. A missing
// snapshot means a fresh start; a schema version mismatch or a corrupt
// payload discards the snapshot in full and the next scans rebuild
// from scratch. An embedding model mismatch is fatal: the caller must
// use a new index.
func (r *ReconcilerService) LoadSnapshot(ctx context.Context) error {
	snap, err := r.snapshots.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Info("No index snapshot, starting fresh")
			return nil
		}
		return fmt.Errorf("load snapshot: %w", err)
	}

	if err := r.index.RestoreSnapshot(*snap); err != nil {
		switch {
		case errors.Is(err, domain.ErrSnapshotVersion):
			logger.Warn("Snapshot schema outdated, rebuilding index from scratch")
			return nil
		case errors.Is(err, domain.ErrSnapshotCorrupt):
			logger.Warn("Snapshot unreadable, rebuilding index from scratch: %v", err)
			return nil
		}
		return fmt.Errorf("restore snapshot: %w", err)
	}

	stats, err := r.index.Stats(ctx)
	if err == nil {
		logger.Info("Restored index snapshot: %d documents, %d chunks",
			stats.Documents, stats.Chunks)
	}
	return nil
}

// Start runs the worker loop. It blocks until the context is cancelled
// or Stop is called.
func (r *ReconcilerService) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return domain.ErrReconcilerRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	r.running = true
	r.cancel = cancel
	r.done = make(chan struct{})
	r.mu.Unlock()

	logger.Section("Reconciler")
	logger.Info("Worker started (debounce %s, scan every %s)",
		r.cfg.Debounce, r.cfg.ReconcileInterval)

	defer func() {
		r.flushSnapshot(context.Background())
		r.mu.Lock()
		r.running = false
		close(r.done)
		r.mu.Unlock()
		logger.Info("Worker stopped")
	}()

	// First scan runs immediately so a cold start indexes without
	// waiting a full interval.
	if _, err := r.scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Initial scan failed: %v", err)
	}

	queueTicker := time.NewTicker(queuePollInterval)
	defer queueTicker.Stop()
	scanTicker := time.NewTicker(r.cfg.ReconcileInterval)
	defer scanTicker.Stop()
	saveTicker := time.NewTicker(r.cfg.SaveInterval)
	defer saveTicker.Stop()

	changes := r.source.Changes()

	for {
		select {
		case <-ctx.Done():
			return nil

		case change, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			r.Notify(change)

		case <-queueTicker.C:
			if !r.idle() {
				continue
			}
			if err := r.drainBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("Batch failed: %v", err)
			}

		case <-scanTicker.C:
			if !r.idle() {
				logger.Debug("Skipping scan, user active")
				continue
			}
			if _, err := r.scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("Scan failed: %v", err)
			}

		case <-saveTicker.C:
			r.flushSnapshot(ctx)
		}
	}
}

// Stop shuts the worker down and flushes any pending snapshot.
// Stopping a reconciler that never started is a no-op.
func (r *ReconcilerService) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Notify enqueues a change. Safe to call from any goroutine.
func (r *ReconcilerService) Notify(change domain.Change) {
	now := time.Now()
	switch change.Kind {
	case domain.ChangeCreated, domain.ChangeModified:
		r.queue.Put(change.Path, domain.QueueIndex, now)
	case domain.ChangeDeleted:
		r.queue.Put(change.Path, domain.QueueDelete, now)
	case domain.ChangeRenamed:
		r.queue.PutRename(change.OldPath, change.Path, now)
	default:
		logger.Debug("Ignoring unknown change kind %q for %s", change.Kind, change.Path)
		return
	}
	logger.Debug("Queued %s %s (depth %d)", change.Kind, change.Path, r.queue.Len())
}

// ReconcileOnce runs a single bidirectional scan and drains the queue
// until empty, bypassing idle gating and the debounce window. It
// returns the number of documents processed.
func (r *ReconcilerService) ReconcileOnce(ctx context.Context) (int, error) {
	queued, err := r.scan(ctx)
	if err != nil {
		return 0, err
	}
	logger.Debug("Scan queued %d stale documents", queued)

	processed := 0
	for {
		items := r.queue.TakeDue(time.Now().Add(r.cfg.Debounce), r.cfg.Debounce, r.cfg.BatchSize)
		if len(items) == 0 {
			break
		}
		n, err := r.processBatch(ctx, items, false)
		processed += n
		if err != nil {
			return processed, err
		}
	}

	r.flushSnapshot(ctx)
	return processed, nil
}

// Status returns a point-in-time view of the reconciler.
func (r *ReconcilerService) Status() domain.ReconcilerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.ReconcilerStatus{
		Running:          r.running,
		QueueDepth:       r.queue.Len(),
		IdleWait:         r.idleWait(),
		Indexing:         r.indexing,
		LastReconcile:    r.lastReconcile,
		DocumentsIndexed: r.documentsIndexed,
	}
}

// idle reports whether indexing is currently permitted.
func (r *ReconcilerService) idle() bool {
	if r.activity == nil {
		return true
	}
	return time.Since(r.activity.LastActivity()) >= r.cfg.IdleThreshold
}

// idleWait returns how long until the idle threshold is reached.
// Callers hold r.mu.
func (r *ReconcilerService) idleWait() time.Duration {
	if r.activity == nil {
		return 0
	}
	wait := r.cfg.IdleThreshold - time.Since(r.activity.LastActivity())
	if wait < 0 {
		return 0
	}
	return wait
}

// drainBatch processes one capped batch of due queue items.
func (r *ReconcilerService) drainBatch(ctx context.Context) error {
	items := r.queue.TakeDue(time.Now(), r.cfg.Debounce, r.cfg.BatchSize)
	if len(items) == 0 {
		return nil
	}
	_, err := r.processBatch(ctx, items, true)
	return err
}

// processBatch applies queue items one by one, yielding between items
// so cancellation never waits on more than the document in flight.
// With deferActive set, items for documents the user has open are
// requeued untouched.
func (r *ReconcilerService) processBatch(ctx context.Context, items []domain.QueueItem, deferActive bool) (int, error) {
	r.setIndexing(true)
	defer r.setIndexing(false)

	processed := 0
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			r.requeueRest(items[i:])
			return processed, err
		}

		if deferActive && r.activity != nil && r.activity.IsActiveDocument(item.Path) {
			logger.Debug("Deferring %s, document active", item.Path)
			r.queue.Requeue(item)
			continue
		}

		if err := r.processItem(ctx, item); err != nil {
			logger.Warn("Processing %s failed: %v", item.Path, err)
			continue
		}
		processed++
		r.markDirty()
	}

	r.mu.Lock()
	r.documentsIndexed += processed
	r.mu.Unlock()
	return processed, nil
}

func (r *ReconcilerService) requeueRest(items []domain.QueueItem) {
	for _, item := range items {
		r.queue.Requeue(item)
	}
}

// processItem applies a single queue item to the index.
func (r *ReconcilerService) processItem(ctx context.Context, item domain.QueueItem) error {
	switch item.Kind {
	case domain.QueueDelete:
		logger.Debug("Removing %s", item.Path)
		return r.index.RemoveDocument(ctx, item.Path)

	case domain.QueueRename:
		return r.processRename(ctx, item)

	default:
		return r.indexer.IndexDocument(ctx, item.Path)
	}
}

// processRename handles a moved document. When the content is unchanged
// (indexed mtime matches the store), the chunks move as a metadata-only
// update and their embeddings survive. Otherwise the old entry is
// dropped and the new path indexed from scratch.
func (r *ReconcilerService) processRename(ctx context.Context, item domain.QueueItem) error {
	doc, err := r.source.Stat(ctx, item.Path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Moved again or deleted; drop both entries.
			if err := r.index.RemoveDocument(ctx, item.OldPath); err != nil {
				return err
			}
			return r.index.RemoveDocument(ctx, item.Path)
		}
		return fmt.Errorf("stat %s: %w", item.Path, err)
	}

	indexedMtime, err := r.index.DocumentMtime(ctx, item.OldPath)
	if err == nil && indexedMtime.Equal(doc.ModifiedAt) {
		logger.Debug("Moving %s -> %s, content unchanged", item.OldPath, item.Path)
		return r.index.RenameDocument(ctx, item.OldPath, item.Path)
	}

	logger.Debug("Reindexing %s after move from %s", item.Path, item.OldPath)
	if err := r.index.RemoveDocument(ctx, item.OldPath); err != nil {
		return err
	}
	return r.indexer.IndexDocument(ctx, item.Path)
}

// scan runs the bidirectional reconciliation pass: forward over the
// store to find new or stale documents, reverse over the index to find
// orphans, plus an embedding retry for keyword-only documents. Stale
// paths are enqueued already due, so the normal batch cap applies.
func (r *ReconcilerService) scan(ctx context.Context) (int, error) {
	docs, err := r.source.ListDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}

	// Backdated so TakeDue considers them immediately.
	due := time.Now().Add(-r.cfg.Debounce)
	queued := 0

	present := make(map[string]bool, len(docs))
	for _, doc := range docs {
		present[doc.Path] = true

		indexedMtime, err := r.index.DocumentMtime(ctx, doc.Path)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				r.queue.Put(doc.Path, domain.QueueIndex, due)
				queued++
				continue
			}
			return queued, fmt.Errorf("indexed mtime for %s: %w", doc.Path, err)
		}
		if doc.ModifiedAt.After(indexedMtime) {
			r.queue.Put(doc.Path, domain.QueueIndex, due)
			queued++
		}
	}

	indexed, err := r.index.Paths(ctx)
	if err != nil {
		return queued, fmt.Errorf("indexed paths: %w", err)
	}
	for _, path := range indexed {
		if !present[path] {
			logger.Debug("Orphan in index: %s", path)
			r.queue.Put(path, domain.QueueDelete, due)
			queued++
		}
	}

	r.retryEmbeddings(ctx)

	r.mu.Lock()
	r.lastReconcile = time.Now()
	r.mu.Unlock()

	if queued > 0 {
		logger.Info("Scan found %d documents out of sync", queued)
	}
	return queued, nil
}

// retryEmbeddings re-attempts phase 2 for documents indexed without
// vectors, up to one batch per scan.
func (r *ReconcilerService) retryEmbeddings(ctx context.Context) {
	paths, err := r.index.UnembeddedPaths(ctx)
	if err != nil || len(paths) == 0 {
		return
	}
	if len(paths) > r.cfg.BatchSize {
		paths = paths[:r.cfg.BatchSize]
	}
	logger.Debug("Retrying embeddings for %d documents", len(paths))
	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		if err := r.indexer.EmbedDocument(ctx, path); err != nil {
			logger.Debug("Embedding retry for %s failed: %v", path, err)
			return
		}
		r.markDirty()
	}
}

func (r *ReconcilerService) setIndexing(v bool) {
	r.mu.Lock()
	r.indexing = v
	r.mu.Unlock()
}

func (r *ReconcilerService) markDirty() {
	r.mu.Lock()
	r.dirty = true
	r.mu.Unlock()
}

// flushSnapshot persists the index if anything changed since the last
// save. Called on the save ticker and unconditionally at shutdown.
func (r *ReconcilerService) flushSnapshot(ctx context.Context) {
	r.mu.Lock()
	dirty := r.dirty
	r.dirty = false
	r.mu.Unlock()
	if !dirty {
		return
	}

	snap, err := r.index.EncodeSnapshot()
	if err != nil {
		logger.Warn("Encoding snapshot failed: %v", err)
		r.markDirty()
		return
	}
	if err := r.snapshots.Save(ctx, snap); err != nil {
		logger.Warn("Saving snapshot failed: %v", err)
		r.markDirty()
		return
	}
	logger.Debug("Snapshot saved")
}
