package services

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/notelens-io/notelens/internal/core/domain"
	"github.com/notelens-io/notelens/internal/core/ports/driven"
	"github.com/notelens-io/notelens/internal/core/ports/driving"
)

// Ensure FinderService implements the interface.
var _ driving.DocumentFinder = (*FinderService)(nil)

// FinderService lists documents by metadata, straight from the source.
// It never consults the index, so results include documents not yet
// reconciled.
type FinderService struct {
	source driven.DocumentSource
}

// NewFinderService creates a finder over a document source.
func NewFinderService(source driven.DocumentSource) *FinderService {
	return &FinderService{source: source}
}

// Find returns documents matching an optional path glob, tag, and
// frontmatter property, sorted by path. The property is either a bare
// key ("status", any value) or "key:value" for an exact match. Empty
// arguments match everything.
func (f *FinderService) Find(ctx context.Context, pathGlob, tag, property string) ([]domain.Document, error) {
	docs, err := f.source.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	propKey, propValue, _ := strings.Cut(property, ":")

	matched := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		if pathGlob != "" {
			ok, err := path.Match(pathGlob, doc.Path)
			if err != nil {
				return nil, fmt.Errorf("glob %q: %w", pathGlob, domain.ErrInvalidInput)
			}
			// Also try matching the basename, so "*.md" finds nested
			// documents the way users expect.
			if !ok {
				ok, _ = path.Match(pathGlob, path.Base(doc.Path))
			}
			if !ok {
				continue
			}
		}
		if tag != "" && !hasTag(doc.Tags, tag) {
			continue
		}
		if propKey != "" && !hasProperty(doc.Properties, propKey, propValue) {
			continue
		}
		matched = append(matched, doc)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Path < matched[j].Path
	})
	return matched, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// hasProperty matches a frontmatter property. An empty value only
// requires the key to exist.
func hasProperty(properties map[string]string, key, value string) bool {
	got, ok := properties[key]
	if !ok {
		return false
	}
	return value == "" || got == value
}
