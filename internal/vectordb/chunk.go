package vectordb

import "time"

// Partition is an independently queryable subset of the vector index.
// Every chunk lives in PartitionTeacher; chunks from public documents are
// additionally written to PartitionStudent so student queries for public
// content can be served by a single natively-filtered search.
type Partition string

const (
	PartitionTeacher Partition = "teacher"
	PartitionStudent Partition = "student"
)

// Metadata keys used in the backend's native filter language.
const (
	MetaDocumentID  = "document_id"
	MetaFilename    = "filename"
	MetaAccessLevel = "access_level"
	MetaAllowedIDs  = "allowed_student_ids"
	MetaClassGroup  = "class_group"
	MetaOwnerID     = "owner_id"
	MetaIngestedAt  = "ingested_at"
)

// Chunk is the unit of embedding and retrieval: a bounded span of a
// document's text with the owning document's access metadata replicated
// onto it.
type Chunk struct {
	ID       string
	Text     string
	Metadata ChunkMetadata
}

// ChunkMetadata holds the access policy and citation fields for a chunk.
// AllowedStudentIDs is the canonical typed form; the flattened backend
// representation is an encoding detail of the store.
type ChunkMetadata struct {
	DocumentID        string
	Filename          string
	AccessLevel       string
	AllowedStudentIDs []string
	ClassGroup        string
	OwnerID           string
	IngestedAt        time.Time
}

// SearchResult pairs a chunk with its similarity score and the partition
// it was retrieved from.
type SearchResult struct {
	Chunk      Chunk
	Similarity float32
	Partition  Partition
}
