// Package domain defines the core business entities for Notelens.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A note observed in the external store
//   - Chunk: A heading-scoped passage, the unit of indexing
//   - QueueItem: A pending re-index or removal
//   - SearchOptions / SearchResult: The query surface
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
