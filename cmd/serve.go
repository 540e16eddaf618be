package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/classrag/internal/answer"
	"github.com/ziadkadry99/classrag/internal/audit"
	"github.com/ziadkadry99/classrag/internal/auth"
	"github.com/ziadkadry99/classrag/internal/catalog"
	"github.com/ziadkadry99/classrag/internal/ingest"
	"github.com/ziadkadry99/classrag/internal/retrieval"
	"github.com/ziadkadry99/classrag/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the classrag API server",
	Long:  `Starts the HTTP API server: login, document upload, role-scoped querying and the interactive chat websocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		secret, err := jwtSecret(cfg)
		if err != nil {
			return err
		}

		allowAll, _ := cmd.Flags().GetBool("allow-all-origins")

		embedder, err := createEmbedderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		provider, err := createLLMProviderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		ctx := context.Background()
		vectors := openVectorStore(ctx, cfg, embedder)

		cat := catalog.NewStore(database)
		users := auth.NewStore(database)
		auditStore := audit.NewStore(database)
		tokens := auth.NewTokens(secret, time.Duration(cfg.TokenTTLMinutes)*time.Minute)

		pipeline := &ingest.Pipeline{
			Catalog: cat,
			Vectors: vectors,
			Chunker: ingest.Chunker{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		}
		retriever := retrieval.NewRetriever(vectors, cat, auditStore)
		assembler := answer.NewAssembler(provider, cfg.Model)

		srv := server.New(server.Config{
			Port:     cfg.Port,
			DataDir:  vectorDir(cfg),
			TopK:     cfg.TopK,
			AllowAll: allowAll || cfg.AllowAllOrigins,
		}, tokens, users, cat, auditStore, vectors, pipeline, retriever, assembler)

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan os.Signal, 1)
		signal.Notify(done, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-done
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("allow-all-origins", false, "allow all CORS origins (dev mode)")
	rootCmd.AddCommand(serveCmd)
}
