// Package file loads engine configuration from a TOML file.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/notelens-io/notelens/internal/core/domain"
)

// Config is the full engine configuration. Zero values mean "use the
// default"; Load fills them in after parsing.
type Config struct {
	Vault      VaultConfig      `toml:"vault"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Rerank     RerankConfig     `toml:"rerank"`
	Reconciler ReconcilerConfig `toml:"reconciler"`
	Search     SearchConfig     `toml:"search"`
	Chunking   ChunkingConfig   `toml:"chunking"`
	Snapshot   SnapshotConfig   `toml:"snapshot"`
}

// VaultConfig locates the document store.
type VaultConfig struct {
	// Path is the root directory of the note vault.
	Path string `toml:"path"`

	// Extensions lists the file extensions treated as documents.
	Extensions []string `toml:"extensions"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is "ollama", "openai", or "none".
	Provider string `toml:"provider"`

	// Model is the embedding model name.
	Model string `toml:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`

	// APIKey authenticates hosted providers. The NOTELENS_API_KEY
	// environment variable takes precedence.
	APIKey string `toml:"api_key"`
}

// RerankConfig tunes the optional second-pass scorer.
type RerankConfig struct {
	// Enabled turns reranking on by default for hybrid queries.
	Enabled bool `toml:"enabled"`

	// Model is the judge model name.
	Model string `toml:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`
}

// ReconcilerConfig mirrors the engine's reconciliation timings.
// Durations use Go syntax, e.g. "3s" or "2m".
type ReconcilerConfig struct {
	Debounce          duration `toml:"debounce"`
	ReconcileInterval duration `toml:"reconcile_interval"`
	IdleThreshold     duration `toml:"idle_threshold"`
	BatchSize         int      `toml:"batch_size"`
	SaveInterval      duration `toml:"save_interval"`
}

// SearchConfig sets query defaults.
type SearchConfig struct {
	// Mode is the default search mode: "hybrid", "fulltext", "vector".
	Mode string `toml:"mode"`

	// Limit is the default result count.
	Limit int `toml:"limit"`

	// MinScore drops vector hits below this similarity.
	MinScore float64 `toml:"min_score"`
}

// ChunkingConfig tunes the document splitter.
type ChunkingConfig struct {
	// MaxSize is the largest passage, in characters.
	MaxSize int `toml:"max_size"`

	// MinSize is the whole-document threshold, in characters.
	MinSize int `toml:"min_size"`

	// Overlap is carried between fixed-size splits, in characters.
	Overlap int `toml:"overlap"`
}

// SnapshotConfig locates the persisted index.
type SnapshotConfig struct {
	// Dir is the directory holding the snapshot database. Defaults to
	// the data directory inside the config directory.
	Dir string `toml:"dir"`
}

// duration wraps time.Duration with TOML string parsing.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// DefaultDir returns the notelens config directory, ~/.notelens.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".notelens"), nil
}

// Load reads configuration from configDir/config.toml. A missing file
// yields pure defaults; a malformed file is an error, never silently
// ignored. Unset fields fall back to defaults field by field.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}

	cfg := &Config{}
	path := filepath.Join(configDir, "config.toml")

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults(configDir)

	if key := os.Getenv("NOTELENS_API_KEY"); key != "" {
		cfg.Embedding.APIKey = key
	}
	return cfg, nil
}

// Save writes the configuration to configDir/config.toml, creating the
// directory if needed. Restricted permissions: the file may hold an
// API key.
func Save(configDir string, cfg *Config) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(configDir, "config.toml"), data, 0600)
}

func (c *Config) applyDefaults(configDir string) {
	if len(c.Vault.Extensions) == 0 {
		c.Vault.Extensions = []string{".md", ".markdown", ".txt"}
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Embedding.Model == "" {
		switch c.Embedding.Provider {
		case "openai":
			c.Embedding.Model = "text-embedding-3-small"
		default:
			c.Embedding.Model = "nomic-embed-text"
		}
	}

	if c.Rerank.Model == "" {
		c.Rerank.Model = "qwen2.5:3b"
	}

	def := domain.DefaultReconcilerConfig()
	if c.Reconciler.Debounce == 0 {
		c.Reconciler.Debounce = duration(def.Debounce)
	}
	if c.Reconciler.ReconcileInterval == 0 {
		c.Reconciler.ReconcileInterval = duration(def.ReconcileInterval)
	}
	if c.Reconciler.IdleThreshold == 0 {
		c.Reconciler.IdleThreshold = duration(def.IdleThreshold)
	}
	if c.Reconciler.BatchSize == 0 {
		c.Reconciler.BatchSize = def.BatchSize
	}
	if c.Reconciler.SaveInterval == 0 {
		c.Reconciler.SaveInterval = duration(def.SaveInterval)
	}

	if c.Search.Mode == "" {
		c.Search.Mode = string(domain.SearchModeHybrid)
	}
	if c.Search.Limit == 0 {
		c.Search.Limit = 10
	}

	if c.Snapshot.Dir == "" {
		c.Snapshot.Dir = filepath.Join(configDir, "data")
	}
}

// ReconcilerConfig converts the TOML section to the domain type.
func (c *Config) ReconcilerConfig() domain.ReconcilerConfig {
	return domain.ReconcilerConfig{
		Debounce:          time.Duration(c.Reconciler.Debounce),
		ReconcileInterval: time.Duration(c.Reconciler.ReconcileInterval),
		IdleThreshold:     time.Duration(c.Reconciler.IdleThreshold),
		BatchSize:         c.Reconciler.BatchSize,
		SaveInterval:      time.Duration(c.Reconciler.SaveInterval),
	}
}
