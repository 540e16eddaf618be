package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to the given path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to classrag! Let's configure your workspace.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. LLM provider.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"ollama", "openai"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)

	modelDefault := "llama3"
	embedDefault := "nomic-embed-text"
	if cfg.Provider == ProviderOpenAI {
		modelDefault = "gpt-4o-mini"
		embedDefault = "text-embedding-3-small"
	}

	// 2. Model.
	modelPrompt := promptui.Prompt{
		Label:   "Answer model",
		Default: modelDefault,
	}
	if cfg.Model, err = modelPrompt.Run(); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	// 3. Embedding model.
	embedPrompt := promptui.Prompt{
		Label:   "Embedding model",
		Default: embedDefault,
	}
	if cfg.EmbeddingModel, err = embedPrompt.Run(); err != nil {
		return nil, fmt.Errorf("embedding model: %w", err)
	}
	cfg.EmbeddingProvider = cfg.Provider
	cfg.EmbeddingDimensions = cfg.EmbeddingDims()

	// 4. Directories.
	docsPrompt := promptui.Prompt{
		Label:   "Documents directory",
		Default: cfg.DocumentsDir,
	}
	if cfg.DocumentsDir, err = docsPrompt.Run(); err != nil {
		return nil, fmt.Errorf("documents dir: %w", err)
	}

	dataPrompt := promptui.Prompt{
		Label:   "Data directory (database and vector index)",
		Default: cfg.DataDir,
	}
	if cfg.DataDir, err = dataPrompt.Run(); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	// 5. Server port.
	portPrompt := promptui.Prompt{
		Label:   "API server port",
		Default: strconv.Itoa(cfg.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("must be a port number")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(strings.TrimSpace(portStr))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, err
	}

	fmt.Println()
	fmt.Printf("Configuration written to %s\n", path)
	fmt.Println("Set CLASSRAG_JWT_SECRET before starting the server.")
	return cfg, nil
}
