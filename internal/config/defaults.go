package config

// embeddingPreset maps known embedding models to their dimensions.
var embeddingPresets = map[string]int{
	"nomic-embed-text":       768,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// DefaultConfig returns a Config with sensible defaults. The defaults
// run fully local against Ollama.
func DefaultConfig() *Config {
	return &Config{
		Provider:            ProviderOllama,
		Model:               "llama3",
		EmbeddingProvider:   ProviderOllama,
		EmbeddingModel:      "nomic-embed-text",
		EmbeddingDimensions: 768,
		DataDir:             "data",
		DocumentsDir:        "documents",
		ChunkSize:           1000,
		ChunkOverlap:        200,
		TopK:                5,
		Port:                8080,
		TokenTTLMinutes:     60,
		Include:             []string{"**"},
		Exclude:             []string{},
	}
}

// EmbeddingDims returns the embedding dimension count, falling back to
// the preset for the configured model.
func (c *Config) EmbeddingDims() int {
	if c.EmbeddingDimensions > 0 {
		return c.EmbeddingDimensions
	}
	if d, ok := embeddingPresets[c.EmbeddingModel]; ok {
		return d
	}
	return 768
}
