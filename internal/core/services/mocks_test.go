package services

import (
	"context"
	"sync"
	"time"

	"github.com/notelens-io/notelens/internal/core/domain"
)

// --- Mock implementations ---

// mockSource implements driven.DocumentSource over a map of documents.
type mockSource struct {
	mu      sync.Mutex
	docs    map[string]domain.Document
	changes chan domain.Change

	listErr error
	readErr error
	onRead  func(path string)
}

func newMockSource() *mockSource {
	return &mockSource{
		docs:    make(map[string]domain.Document),
		changes: make(chan domain.Change, 16),
	}
}

func (m *mockSource) add(path, content string, mtime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[path] = domain.Document{
		Path:       path,
		Title:      path,
		Content:    content,
		ModifiedAt: mtime,
	}
}

func (m *mockSource) addDoc(doc domain.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.Path] = doc
}

func (m *mockSource) remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, path)
}

func (m *mockSource) ListDocuments(_ context.Context) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	docs := make([]domain.Document, 0, len(m.docs))
	for _, d := range m.docs {
		meta := d
		meta.Content = ""
		docs = append(docs, meta)
	}
	return docs, nil
}

func (m *mockSource) Stat(_ context.Context, path string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	meta := d
	meta.Content = ""
	return &meta, nil
}

func (m *mockSource) ReadContent(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.onRead != nil {
		m.onRead(path)
	}
	if m.readErr != nil {
		return "", m.readErr
	}
	d, ok := m.docs[path]
	if !ok {
		return "", domain.ErrNotFound
	}
	return d.Content, nil
}

func (m *mockSource) Changes() <-chan domain.Change { return m.changes }

func (m *mockSource) Close() error { return nil }

// mockActivity implements driven.ActivityMonitor with settable state.
type mockActivity struct {
	mu         sync.Mutex
	lastActive time.Time
	activeDocs map[string]bool
}

func newMockActivity() *mockActivity {
	return &mockActivity{activeDocs: make(map[string]bool)}
}

func (m *mockActivity) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActive
}

func (m *mockActivity) IsActiveDocument(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeDocs[path]
}

func (m *mockActivity) setActive(path string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeDocs[path] = active
}

func (m *mockActivity) setLastActivity(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActive = t
}

// mockEmbedder implements driven.EmbeddingService with a fixed vector.
type mockEmbedder struct {
	mu       sync.Mutex
	vector   []float32
	embedErr error
	calls    int
}

func (m *mockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = m.vector
	}
	return vectors, nil
}

func (m *mockEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector, nil
}

func (m *mockEmbedder) Dimensions() int { return len(m.vector) }

func (m *mockEmbedder) ModelName() string { return "mock-embed" }

func (m *mockEmbedder) Ping(_ context.Context) error { return nil }

func (m *mockEmbedder) Close() error { return nil }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockReranker implements driven.RerankService with a canned order.
type mockReranker struct {
	order []int
	err   error
}

func (m *mockReranker) Rerank(_ context.Context, _ string, _ []string, topK int) ([]int, error) {
	if m.err != nil {
		return nil, m.err
	}
	order := m.order
	if topK > 0 && len(order) > topK {
		order = order[:topK]
	}
	return order, nil
}

func (m *mockReranker) ModelName() string { return "mock-judge" }

func (m *mockReranker) Close() error { return nil }
