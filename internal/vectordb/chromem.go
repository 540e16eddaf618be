package vectordb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/classrag/internal/embeddings"
)

// allowedIDsSep separates student IDs in the flattened metadata value.
// IDs are UUIDs, which never contain a comma.
const allowedIDsSep = ","

const exportFile = "chromem.gob.gz"

// ChromemStore implements Store using chromem-go with one collection per
// partition. Collections are created lazily on first write; a search
// against a partition that was never written to returns no results.
type ChromemStore struct {
	db        *chromem.DB
	embedFunc chromem.EmbeddingFunc

	mu          sync.RWMutex
	collections map[Partition]*chromem.Collection
}

// NewChromemStore creates a new in-memory ChromemStore.
func NewChromemStore(embedder embeddings.Embedder) *ChromemStore {
	return &ChromemStore{
		db:          chromem.NewDB(),
		embedFunc:   embeddings.ToChromemFunc(embedder),
		collections: make(map[Partition]*chromem.Collection),
	}
}

func collectionName(p Partition) string {
	return "partition_" + string(p)
}

// collection returns the chromem collection for a partition, creating it
// if create is true. Returns nil when the partition does not exist and
// create is false.
func (s *ChromemStore) collection(p Partition, create bool) (*chromem.Collection, error) {
	s.mu.RLock()
	col := s.collections[p]
	s.mu.RUnlock()
	if col != nil || !create {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col = s.collections[p]; col != nil {
		return col, nil
	}
	col, err := s.db.GetOrCreateCollection(collectionName(p), nil, s.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection for partition %q: %w", p, err)
	}
	s.collections[p] = col
	return col, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, partition Partition, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	col, err := s.collection(partition, true)
	if err != nil {
		return err
	}

	// Delete any existing chunks with the same IDs first so re-ingestion
	// overwrites instead of duplicating.
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete existing chunks in %q: %w", partition, err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:       c.ID,
			Content:  c.Text,
			Metadata: metadataToMap(c.Metadata),
		}
	}

	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("add chunks to %q: %w", partition, err)
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, partition Partition, query string, limit int, where map[string]string) ([]SearchResult, error) {
	col, err := s.collection(partition, false)
	if err != nil {
		return nil, err
	}
	if col == nil {
		// Uninitialized partition is empty, not an error.
		return nil, nil
	}

	if limit <= 0 {
		limit = 10
	}

	// chromem-go requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	if len(where) == 0 {
		where = nil
	}

	results, err := col.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query in %q: %w", partition, err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			Chunk: Chunk{
				ID:       r.ID,
				Text:     r.Content,
				Metadata: mapToMetadata(r.Metadata),
			},
			Similarity: r.Similarity,
			Partition:  partition,
		}
	}
	return out, nil
}

func (s *ChromemStore) DeleteByDocument(ctx context.Context, partition Partition, documentID string) error {
	col, err := s.collection(partition, false)
	if err != nil {
		return err
	}
	if col == nil {
		return nil
	}
	where := map[string]string{MetaDocumentID: documentID}
	return col.Delete(ctx, where, nil)
}

func (s *ChromemStore) Count(partition Partition) int {
	col, _ := s.collection(partition, false)
	if col == nil {
		return 0
	}
	return col.Count()
}

func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating vector index dir: %w", err)
	}
	return s.db.ExportToFile(filepath.Join(dir, exportFile), true, "")
}

func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	if err := s.db.ImportFromFile(filepath.Join(dir, exportFile), ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection references after import.
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range []Partition{PartitionTeacher, PartitionStudent} {
		if col := s.db.GetCollection(collectionName(p), s.embedFunc); col != nil {
			s.collections[p] = col
		}
	}
	return nil
}

// metadataToMap flattens ChunkMetadata to the map[string]string form
// chromem stores. The flattened allowed_student_ids value is an encoding
// detail only; access decisions always use the typed field.
func metadataToMap(m ChunkMetadata) map[string]string {
	return map[string]string{
		MetaDocumentID:  m.DocumentID,
		MetaFilename:    m.Filename,
		MetaAccessLevel: m.AccessLevel,
		MetaAllowedIDs:  strings.Join(m.AllowedStudentIDs, allowedIDsSep),
		MetaClassGroup:  m.ClassGroup,
		MetaOwnerID:     m.OwnerID,
		MetaIngestedAt:  m.IngestedAt.UTC().Format(time.RFC3339),
	}
}

// mapToMetadata restores the typed ChunkMetadata from the flattened form.
func mapToMetadata(m map[string]string) ChunkMetadata {
	var allowed []string
	if v := m[MetaAllowedIDs]; v != "" {
		allowed = strings.Split(v, allowedIDsSep)
	}
	ingestedAt, _ := time.Parse(time.RFC3339, m[MetaIngestedAt])

	return ChunkMetadata{
		DocumentID:        m[MetaDocumentID],
		Filename:          m[MetaFilename],
		AccessLevel:       m[MetaAccessLevel],
		AllowedStudentIDs: allowed,
		ClassGroup:        m[MetaClassGroup],
		OwnerID:           m[MetaOwnerID],
		IngestedAt:        ingestedAt,
	}
}
