package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ziadkadry99/classrag/internal/config"
	"github.com/ziadkadry99/classrag/internal/db"
	"github.com/ziadkadry99/classrag/internal/embeddings"
	"github.com/ziadkadry99/classrag/internal/llm"
	"github.com/ziadkadry99/classrag/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `classrag init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}

	switch provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.EmbeddingModel)), nil
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(cfg.EmbeddingModel, cfg.EmbeddingDims(), os.Getenv("OLLAMA_HOST")), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", provider)
	}
}

// createLLMProviderFromConfig creates an LLM provider based on config settings.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	return llm.NewProvider(string(cfg.Provider), cfg.Model)
}

// openDatabase opens the SQLite database under the data directory.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	return db.Open(filepath.Join(cfg.DataDir, "classrag.db"))
}

// vectorDir is where the vector index export lives.
func vectorDir(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "vectordb")
}

// openVectorStore creates the chromem store and loads any existing
// export. A missing export is not fatal: the store starts empty.
func openVectorStore(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder) *vectordb.ChromemStore {
	store := vectordb.NewChromemStore(embedder)
	dir := vectorDir(cfg)
	if _, err := os.Stat(dir); err == nil {
		if err := store.Load(ctx, dir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load vector index from %s: %v\n", dir, err)
		}
	}
	return store
}

// jwtSecret returns the signing secret, which must come from the
// environment or config; there is no insecure default.
func jwtSecret(cfg *config.Config) (string, error) {
	if cfg.JWTSecret != "" {
		return cfg.JWTSecret, nil
	}
	return "", fmt.Errorf("CLASSRAG_JWT_SECRET environment variable is not set")
}
