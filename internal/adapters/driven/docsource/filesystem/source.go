// Package filesystem adapts a directory of markdown notes to the
// DocumentSource port. The directory is mutated out-of-band (editors,
// sync clients); this adapter observes it through enumeration and
// fsnotify change events.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/notelens-io/notelens/internal/core/domain"
	"github.com/notelens-io/notelens/internal/core/ports/driven"
	"github.com/notelens-io/notelens/internal/logger"
)

// Ensure Source implements the interfaces.
var (
	_ driven.DocumentSource  = (*Source)(nil)
	_ driven.ActivityMonitor = (*Source)(nil)
)

// activeWindow is how long after its last write a document is still
// considered actively edited and therefore deferred by the reconciler.
const activeWindow = 30 * time.Second

// changeBuffer bounds the notification channel. Producers never block
// the watcher loop; an overflowing burst is dropped and picked up by
// the next periodic reconciliation scan instead.
const changeBuffer = 256

// Source is a filesystem-backed document source rooted at a notes
// directory. It doubles as the activity monitor: fsnotify events are
// the user-activity signal.
type Source struct {
	root    string
	exts    map[string]bool
	watcher *fsnotify.Watcher
	changes chan domain.Change
	done    chan struct{}
	once    sync.Once

	mu           sync.Mutex
	lastActivity time.Time
	lastWrite    map[string]time.Time
}

// New creates a source for the given root directory and starts the
// recursive watcher. Watching failure is not fatal: enumeration still
// works and the periodic scan catches all drift. With no extensions
// given, the usual note formats are recognised.
func New(root string, extensions ...string) (*Source, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("root %s: %w", root, domain.ErrInvalidInput)
	}

	if len(extensions) == 0 {
		extensions = []string{".md", ".markdown", ".txt"}
	}
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = true
	}

	s := &Source{
		root:      abs,
		exts:      exts,
		changes:   make(chan domain.Change, changeBuffer),
		done:      make(chan struct{}),
		lastWrite: make(map[string]time.Time),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("File watching unavailable: %v", err)
		return s, nil
	}
	s.watcher = watcher

	if err := s.watchTree(abs); err != nil {
		logger.Warn("Watching %s: %v", abs, err)
	}
	go s.watchLoop()

	return s, nil
}

// ListDocuments enumerates all notes with their metadata.
func (s *Source) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		doc, err := s.statFile(path)
		if err != nil {
			// File vanished mid-walk; the store is externally mutated.
			return nil
		}
		docs = append(docs, *doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	return docs, nil
}

// Stat returns the metadata of a single note.
func (s *Source) Stat(_ context.Context, path string) (*domain.Document, error) {
	doc, err := s.statFile(filepath.Join(s.root, filepath.FromSlash(path)))
	if err != nil {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

// ReadContent returns the full text of a note.
func (s *Source) ReadContent(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// Changes returns the change notification channel.
func (s *Source) Changes() <-chan domain.Change {
	return s.changes
}

// LastActivity returns the time of the most recent filesystem event.
func (s *Source) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// IsActiveDocument reports whether the path was written recently enough
// to count as being edited right now.
func (s *Source) IsActiveDocument(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastWrite[path]
	return ok && time.Since(last) < activeWindow
}

// Touch records external user activity (e.g. a host reporting an open
// editor). The reconciler's idle gate measures from here.
func (s *Source) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// Close stops the watcher and closes the change channel.
func (s *Source) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if s.watcher != nil {
			err = s.watcher.Close()
		}
		close(s.changes)
	})
	return err
}

// statFile builds a Document from a file on disk, reading only its
// frontmatter for tags and properties.
func (s *Source) statFile(absPath string) (*domain.Document, error) {
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		return nil, domain.ErrNotFound
	}

	rel, err := filepath.Rel(s.root, absPath)
	if err != nil {
		return nil, fmt.Errorf("relative path: %w", err)
	}
	rel = filepath.ToSlash(rel)

	folder := filepath.ToSlash(filepath.Dir(rel))
	if folder == "." {
		folder = ""
	}

	tags, properties := readFrontmatter(absPath)
	return &domain.Document{
		Path:       rel,
		Title:      titleFromFilename(rel),
		ModifiedAt: info.ModTime(),
		Tags:       tags,
		Properties: properties,
		Folder:     folder,
	}, nil
}

// watchTree adds the directory and all subdirectories to the watcher.
func (s *Source) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return s.watcher.Add(path)
	})
}

// watchLoop translates fsnotify events into domain changes and records
// activity. It exits when the source is closed.
func (s *Source) watchLoop() {
	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(event)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Watcher error: %v", err)
		}
	}
}

// handleEvent maps one fsnotify event. A directory create extends the
// watch; a rename of the old path surfaces as a deletion, with the new
// path arriving as a separate create event.
func (s *Source) handleEvent(event fsnotify.Event) {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := s.watchTree(event.Name); err != nil {
				logger.Warn("Watching new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if !s.exts[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}

	rel, err := filepath.Rel(s.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	var change domain.Change
	switch {
	case event.Op.Has(fsnotify.Create):
		change = domain.Change{Kind: domain.ChangeCreated, Path: rel}
	case event.Op.Has(fsnotify.Write):
		s.mu.Lock()
		s.lastWrite[rel] = time.Now()
		s.mu.Unlock()
		change = domain.Change{Kind: domain.ChangeModified, Path: rel}
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		change = domain.Change{Kind: domain.ChangeDeleted, Path: rel}
	default:
		return // Chmod and friends carry no content change
	}

	select {
	case s.changes <- change:
	default:
		// Full buffer: drop - the periodic scan is the safety net.
		logger.Debug("Change buffer full, dropping event for %s", rel)
	}
}
