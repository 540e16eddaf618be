package ingest

import (
	"github.com/ziadkadry99/classrag/internal/access"
	"github.com/ziadkadry99/classrag/internal/catalog"
	"github.com/ziadkadry99/classrag/internal/vectordb"
)

// Partitions returns the partitions a document's chunks are written to.
// Every chunk goes to the teacher partition; only public chunks are
// duplicated into the student partition, because public is the one tier
// the backend's filter language can cheaply push down for students.
// Narrower tiers stay discoverable through the teacher partition plus
// the residual filter.
func Partitions(level access.AccessLevel) []vectordb.Partition {
	parts := []vectordb.Partition{vectordb.PartitionTeacher}
	if level == access.LevelPublic {
		parts = append(parts, vectordb.PartitionStudent)
	}
	return parts
}

// PartitionChunks maps a document's chunks onto their target partitions.
func PartitionChunks(doc catalog.Document, chunks []vectordb.Chunk) map[vectordb.Partition][]vectordb.Chunk {
	out := make(map[vectordb.Partition][]vectordb.Chunk)
	for _, p := range Partitions(doc.AccessLevel) {
		out[p] = chunks
	}
	return out
}
