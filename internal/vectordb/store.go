package vectordb

import "context"

// Store defines the partition-aware interface for storing and searching
// chunks by embeddings.
type Store interface {
	// Upsert adds or replaces chunks in the given partition. Re-writing an
	// existing chunk ID overwrites it rather than duplicating it.
	Upsert(ctx context.Context, partition Partition, chunks []Chunk) error

	// Search performs a semantic search within one partition. The where
	// clause is a native metadata filter evaluated by the backend; nil
	// means no filter. Searching a partition that does not exist yet
	// returns no results, not an error.
	Search(ctx context.Context, partition Partition, query string, limit int, where map[string]string) ([]SearchResult, error)

	// DeleteByDocument removes all chunks of a document from a partition.
	DeleteByDocument(ctx context.Context, partition Partition, documentID string) error

	// Count returns the number of chunks in a partition.
	Count(partition Partition) int

	// Persist saves the store's data to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load restores the store's data from the given directory.
	Load(ctx context.Context, dir string) error
}
