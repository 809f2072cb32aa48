package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/notelens-io/notelens/internal/adapters/driven/config/file"
	"github.com/notelens-io/notelens/internal/adapters/driven/docsource/filesystem"
	ollamaembed "github.com/notelens-io/notelens/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/notelens-io/notelens/internal/adapters/driven/embedding/openai"
	"github.com/notelens-io/notelens/internal/adapters/driven/index/memory"
	ollamararank "github.com/notelens-io/notelens/internal/adapters/driven/rerank/ollama"
	"github.com/notelens-io/notelens/internal/adapters/driven/snapshot/sqlite"
	"github.com/notelens-io/notelens/internal/chunker"
	"github.com/notelens-io/notelens/internal/core/ports/driven"
	"github.com/notelens-io/notelens/internal/core/services"
	"github.com/notelens-io/notelens/internal/logger"
)

// engine bundles the wired application: adapters on the outside,
// services in the middle. Commands build one, use it, close it.
type engine struct {
	cfg        *file.Config
	source     *filesystem.Source
	index      *memory.Index
	embedder   driven.EmbeddingService
	reranker   driven.RerankService
	snapshots  driven.SnapshotStore
	search     *services.SearchService
	reconciler *services.ReconcilerService
	finder     *services.FinderService
}

// newEngine loads configuration and wires every component, restoring
// the persisted index snapshot. A changed embedding model invalidates
// the snapshot and fails here.
func newEngine(ctx context.Context) (*engine, error) {
	cfg, err := file.Load(configDir)
	if err != nil {
		return nil, err
	}

	vault := vaultPath
	if vault == "" {
		vault = cfg.Vault.Path
	}
	if vault == "" {
		return nil, errors.New("no vault configured: pass --vault or set vault.path in config.toml")
	}

	source, err := filesystem.New(vault, cfg.Vault.Extensions...)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}

	embedder, err := buildEmbedder(ctx, cfg)
	if err != nil {
		source.Close()
		return nil, err
	}

	dimensions := 0
	model := ""
	if embedder != nil {
		dimensions = embedder.Dimensions()
		model = embedder.ModelName()
	}
	index := memory.New(dimensions, model)

	snapshots, err := sqlite.NewStore(cfg.Snapshot.Dir)
	if err != nil {
		source.Close()
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	ch := chunker.New(
		chunker.WithMaxSize(cfg.Chunking.MaxSize),
		chunker.WithMinSize(cfg.Chunking.MinSize),
		chunker.WithOverlap(cfg.Chunking.Overlap),
	)

	reranker := ollamararank.NewRerankService(ollamararank.Config{
		BaseURL: cfg.Rerank.BaseURL,
		Model:   cfg.Rerank.Model,
	})

	indexer := services.NewIndexer(source, index, embedder, ch)
	reconciler := services.NewReconcilerService(
		source, index, indexer, snapshots, source, cfg.ReconcilerConfig())

	e := &engine{
		cfg:        cfg,
		source:     source,
		index:      index,
		embedder:   embedder,
		reranker:   reranker,
		snapshots:  snapshots,
		search:     services.NewSearchService(index, embedder, reranker),
		reconciler: reconciler,
		finder:     services.NewFinderService(source),
	}

	if err := reconciler.LoadSnapshot(ctx); err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}

// buildEmbedder constructs the configured embedding provider. An
// unreachable provider is not an error: indexing degrades to
// keyword-only and queries surface the condition per request.
func buildEmbedder(ctx context.Context, cfg *file.Config) (driven.EmbeddingService, error) {
	switch cfg.Embedding.Provider {
	case "none":
		return nil, nil

	case "openai":
		if cfg.Embedding.APIKey == "" {
			return nil, errors.New("openai provider needs an API key: set NOTELENS_API_KEY or embedding.api_key")
		}
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  cfg.Embedding.APIKey,
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
		}), nil

	case "ollama", "":
		svc := ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
		})
		if _, err := svc.ResolveModelInfo(ctx); err != nil {
			logger.Warn("Embedding model info unavailable, using defaults: %v", err)
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

func (e *engine) close() {
	if e.reranker != nil {
		e.reranker.Close()
	}
	if e.embedder != nil {
		e.embedder.Close()
	}
	if e.snapshots != nil {
		e.snapshots.Close()
	}
	if e.index != nil {
		e.index.Close()
	}
	if e.source != nil {
		e.source.Close()
	}
}
