// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the engine to function:
//
//   - DocumentSource: Enumerates and reads documents from the external store
//   - Index: The hybrid keyword + vector store
//   - SnapshotStore: Versioned index persistence
//
// # Optional Interfaces
//
// These can be nil - the engine degrades gracefully:
//
//   - EmbeddingService: Generates vectors. Without it, search is keyword-only
//     and indexed chunks simply carry no embedding.
//   - RerankService: Second-pass judge-model scoring. Without it, results
//     keep their fused order.
//   - ActivityMonitor: User-activity signals for idle gating. Without it,
//     the reconciler treats the environment as always idle.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
