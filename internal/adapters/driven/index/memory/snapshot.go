package memory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/notelens-io/notelens/internal/core/domain"
	"github.com/notelens-io/notelens/internal/core/ports/driven"
)

// snapshotPayload is the serialized index state. The payload is opaque
// to the SnapshotStore; only this package knows its layout.
type snapshotPayload struct {
	InstanceID string          `json:"instance_id"`
	Model      string          `json:"model"`
	Dimensions int             `json:"dimensions"`
	Chunks     []snapshotChunk `json:"chunks"`
}

// snapshotChunk is the persisted form of a chunk. The embedding is
// optional: a chunk saved between write phases restores without one and
// stays keyword-searchable.
type snapshotChunk struct {
	SourcePath    string    `json:"source_path"`
	Ordinal       int       `json:"ordinal"`
	HeadingPath   string    `json:"heading_path,omitempty"`
	Content       string    `json:"content"`
	Title         string    `json:"title,omitempty"`
	DocumentMtime time.Time `json:"document_mtime"`
	Tags          []string  `json:"tags,omitempty"`
	Folder        string    `json:"folder,omitempty"`
	Embedding     []float32 `json:"embedding,omitempty"`
}

// EncodeSnapshot serializes the full index tagged with SchemaVersion.
func (x *Index) EncodeSnapshot() (driven.Snapshot, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return driven.Snapshot{}, domain.ErrIndexClosed
	}

	payload := snapshotPayload{
		InstanceID: x.instanceID,
		Model:      x.model,
		Dimensions: x.dimensions,
		Chunks:     make([]snapshotChunk, 0, len(x.chunks)),
	}
	for _, c := range x.chunks {
		payload.Chunks = append(payload.Chunks, snapshotChunk{
			SourcePath:    c.SourcePath,
			Ordinal:       c.Ordinal,
			HeadingPath:   c.HeadingPath,
			Content:       c.Content,
			Title:         c.Title,
			DocumentMtime: c.DocumentMtime,
			Tags:          c.Tags,
			Folder:        c.Folder,
			Embedding:     c.Embedding,
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return driven.Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}

	return driven.Snapshot{SchemaVersion: SchemaVersion, Payload: data}, nil
}

// RestoreSnapshot replaces the index contents from a snapshot.
//
// A version mismatch returns domain.ErrSnapshotVersion and an
// undecodable payload returns domain.ErrSnapshotCorrupt; both leave the
// index empty - the caller rebuilds from scratch rather than migrating.
// A model or dimension mismatch returns domain.ErrDimensionMismatch,
// which is fatal at initialisation: a snapshot embedded with a different
// model must not silently corrupt similarity results.
func (x *Index) RestoreSnapshot(snap driven.Snapshot) error {
	if snap.SchemaVersion != SchemaVersion {
		return fmt.Errorf("snapshot version %d, engine version %d: %w",
			snap.SchemaVersion, SchemaVersion, domain.ErrSnapshotVersion)
	}

	var payload snapshotPayload
	if err := json.Unmarshal(snap.Payload, &payload); err != nil {
		return fmt.Errorf("decode snapshot: %v: %w", err, domain.ErrSnapshotCorrupt)
	}

	if payload.Model != x.model || payload.Dimensions != x.dimensions {
		return fmt.Errorf("snapshot model %s/%d, configured %s/%d: %w",
			payload.Model, payload.Dimensions, x.model, x.dimensions,
			domain.ErrDimensionMismatch)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return domain.ErrIndexClosed
	}

	x.instanceID = payload.InstanceID
	x.chunks = make(map[string]domain.Chunk, len(payload.Chunks))
	for _, pc := range payload.Chunks {
		c := domain.Chunk{
			SourcePath:    pc.SourcePath,
			Ordinal:       pc.Ordinal,
			HeadingPath:   pc.HeadingPath,
			Content:       pc.Content,
			Title:         pc.Title,
			DocumentMtime: pc.DocumentMtime,
			Tags:          pc.Tags,
			Folder:        pc.Folder,
			Embedding:     pc.Embedding,
		}
		x.chunks[c.ID()] = c
	}
	return nil
}
