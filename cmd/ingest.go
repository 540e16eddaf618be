package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/classrag/internal/access"
	"github.com/ziadkadry99/classrag/internal/audit"
	"github.com/ziadkadry99/classrag/internal/catalog"
	"github.com/ziadkadry99/classrag/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [directory]",
	Short: "Index a directory of documents under one access policy",
	Long: `Reads .txt and .md files from a directory (default: the configured
documents_dir), chunks them, and writes the chunks into the retrieval
partitions their access policy maps to. Re-running the ingest for the
same files overwrites their chunks instead of duplicating them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("access-level", string(access.LevelTeacherOnly), "access level for ingested documents: public, teacher_only, specific_students, class_group")
	ingestCmd.Flags().String("class-group", "", "class group (required for access-level=class_group)")
	ingestCmd.Flags().StringSlice("allow", nil, "allowed student IDs (for access-level=specific_students)")
	ingestCmd.Flags().String("owner", "cli", "owner ID recorded on ingested documents")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir := cfg.DocumentsDir
	if len(args) > 0 {
		dir = args[0]
	}

	levelStr, _ := cmd.Flags().GetString("access-level")
	classGroup, _ := cmd.Flags().GetString("class-group")
	allowed, _ := cmd.Flags().GetStringSlice("allow")
	owner, _ := cmd.Flags().GetString("owner")

	level := access.AccessLevel(levelStr)
	if !level.Valid() {
		return fmt.Errorf("invalid access level %q", levelStr)
	}
	if level == access.LevelClassGroup && classGroup == "" {
		return fmt.Errorf("--class-group is required for access-level=class_group")
	}
	if level == access.LevelSpecificStudents && len(allowed) == 0 {
		return fmt.Errorf("--allow is required for access-level=specific_students")
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	vectors := openVectorStore(ctx, cfg, embedder)
	cat := catalog.NewStore(database)
	auditStore := audit.NewStore(database)

	pipeline := &ingest.Pipeline{
		Catalog: cat,
		Vectors: vectors,
		Chunker: ingest.Chunker{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
	}

	files, err := ingest.ScanDir(dir, cfg.Include, cfg.Exclude)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("No ingestable files found in %s\n", dir)
		return nil
	}

	policy := ingest.FilePolicy{
		Level:             level,
		AllowedStudentIDs: allowed,
		ClassGroup:        classGroup,
	}

	bar := progressbar.Default(int64(len(files)), "indexing")
	totalChunks := 0
	for _, name := range files {
		doc, n, err := pipeline.IngestFile(ctx, filepath.Join(dir, filepath.FromSlash(name)), name, policy, owner)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", name, err)
		}
		auditStore.Record(ctx, audit.Event{
			ActorID:   owner,
			ActorRole: access.RoleAdmin,
			Action:    audit.ActionDocCreated,
			Subject:   doc.ID,
			Reason:    name,
		})
		totalChunks += n
		bar.Add(1)
	}

	if err := vectors.Persist(ctx, vectorDir(cfg)); err != nil {
		return fmt.Errorf("persisting vector index: %w", err)
	}

	fmt.Printf("\nIndexed %d file(s), %d chunk(s), access level %s", len(files), totalChunks, level)
	if classGroup != "" {
		fmt.Printf(" (class %s)", classGroup)
	}
	if len(allowed) > 0 {
		fmt.Printf(" (students: %s)", strings.Join(allowed, ", "))
	}
	fmt.Println()
	return nil
}
