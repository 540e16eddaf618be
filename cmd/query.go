package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/classrag/internal/answer"
	"github.com/ziadkadry99/classrag/internal/audit"
	"github.com/ziadkadry99/classrag/internal/auth"
	"github.com/ziadkadry99/classrag/internal/catalog"
	"github.com/ziadkadry99/classrag/internal/retrieval"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question as an authenticated user",
	Long: `Runs one role-scoped retrieval + answer round trip from the command
line. Credentials are checked against the local user store; the answer
only draws on documents that user may read.`,
	Args: cobra.ExactArgs(1),
	RunE: runQueryCmd,
}

func init() {
	queryCmd.Flags().String("email", "", "user email (required)")
	queryCmd.Flags().String("password", "", "user password (required)")
	queryCmd.Flags().Int("top-k", 0, "number of chunks to retrieve (default: config top_k)")
	queryCmd.Flags().Bool("json", false, "output the result as JSON")
	queryCmd.MarkFlagRequired("email")
	queryCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(queryCmd)
}

func runQueryCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	question := args[0]

	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	topK, _ := cmd.Flags().GetInt("top-k")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if topK <= 0 {
		topK = cfg.TopK
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	principal, err := auth.NewStore(database).Authenticate(ctx, email, password)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}

	vectors := openVectorStore(ctx, cfg, embedder)
	cat := catalog.NewStore(database)
	auditStore := audit.NewStore(database)

	retriever := retrieval.NewRetriever(vectors, cat, auditStore)

	if retriever.Empty() {
		fmt.Println("No documents available. Please index documents first.")
		return nil
	}

	results, err := retriever.Retrieve(ctx, question, principal, topK)
	if err != nil {
		return fmt.Errorf("retrieval: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("I couldn't find relevant information to answer your question.")
		return nil
	}

	sources := make([]answer.Source, len(results))
	for i, res := range results {
		sources[i] = answer.Source{
			Text:        res.Chunk.Text,
			Filename:    res.Chunk.Metadata.Filename,
			AccessLevel: res.Chunk.Metadata.AccessLevel,
			Partition:   string(res.Partition),
		}
	}

	ans, err := answer.NewAssembler(provider, cfg.Model).Answer(ctx, question, sources)
	if err != nil {
		return fmt.Errorf("generating answer: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"answer":  ans,
			"sources": sources,
		})
	}

	fmt.Println(ans)
	fmt.Println("\nSources:")
	for i, src := range sources {
		fmt.Printf("  %d. %s (%s, via %s partition)\n", i+1, src.Filename, src.AccessLevel, src.Partition)
	}
	return nil
}
