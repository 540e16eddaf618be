package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/ziadkadry99/classrag/internal/access"
	"github.com/ziadkadry99/classrag/internal/catalog"
	"github.com/ziadkadry99/classrag/internal/vectordb"
)

// docNamespace scopes the deterministic document IDs derived from file
// paths, so the same file always re-ingests under the same ID.
var docNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("classrag/documents"))

// textExtensions are the file types the directory scanner ingests.
var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// Pipeline writes documents into the metadata catalog and their chunks
// into the partitioned vector store.
type Pipeline struct {
	Catalog *catalog.Store
	Vectors vectordb.Store
	Chunker Chunker
}

// IngestDocument stores the document's metadata, then chunks the text
// and writes the chunks into the partitions its access level maps to.
// The metadata write happens first so no chunk is ever discoverable
// before its owning document's policy is resolvable. Re-ingesting the
// same document ID overwrites its chunks in every partition, including
// partitions the document no longer maps to after a policy change.
func (p *Pipeline) IngestDocument(ctx context.Context, doc catalog.Document, text string) (int, error) {
	if !doc.AccessLevel.Valid() {
		return 0, fmt.Errorf("document %s has invalid access level %q", doc.ID, doc.AccessLevel)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	if err := p.Catalog.PutDocument(ctx, doc); err != nil {
		return 0, err
	}

	chunks := p.Chunker.ChunkDocument(doc, text)

	// Remove any previous chunks of this document from every partition
	// first: a re-ingest that narrows the access level must not leave
	// stale chunks behind in the student partition.
	for _, part := range []vectordb.Partition{vectordb.PartitionTeacher, vectordb.PartitionStudent} {
		if err := p.Vectors.DeleteByDocument(ctx, part, doc.ID); err != nil {
			return 0, fmt.Errorf("clearing old chunks of %s from %s: %w", doc.ID, part, err)
		}
	}

	for part, cs := range PartitionChunks(doc, chunks) {
		if err := p.Vectors.Upsert(ctx, part, cs); err != nil {
			return 0, fmt.Errorf("writing chunks of %s to %s: %w", doc.ID, part, err)
		}
	}

	return len(chunks), nil
}

// FilePolicy is the access policy applied to files ingested from disk.
type FilePolicy struct {
	Level             access.AccessLevel
	AllowedStudentIDs []string
	ClassGroup        string
}

// IngestFile ingests a single file from disk under the given policy.
// The document ID is derived from the file's name, so re-running the
// ingest overwrites rather than duplicates.
func (p *Pipeline) IngestFile(ctx context.Context, path, name string, policy FilePolicy, ownerID string) (catalog.Document, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return catalog.Document{}, 0, fmt.Errorf("reading %s: %w", path, err)
	}

	doc := catalog.Document{
		ID:                uuid.NewSHA1(docNamespace, []byte(name)).String(),
		Filename:          name,
		AccessLevel:       policy.Level,
		AllowedStudentIDs: policy.AllowedStudentIDs,
		ClassGroup:        policy.ClassGroup,
		OwnerID:           ownerID,
	}

	n, err := p.IngestDocument(ctx, doc, string(data))
	if err != nil {
		return catalog.Document{}, 0, err
	}
	return doc, n, nil
}

// ScanDir walks a directory and returns the relative paths of ingestable
// text files, honoring doublestar include/exclude patterns. An empty
// include list means everything.
func ScanDir(dir string, include, exclude []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if !textExtensions[strings.ToLower(filepath.Ext(rel))] {
			return nil
		}
		if len(include) > 0 && !matchAny(include, rel) {
			return nil
		}
		if matchAny(exclude, rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	return files, nil
}

func matchAny(patterns []string, path string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, path); err == nil && ok {
			return true
		}
	}
	return false
}
