package ingest

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ziadkadry99/classrag/internal/catalog"
	"github.com/ziadkadry99/classrag/internal/vectordb"
)

// Chunker splits document text into overlapping spans of roughly Size
// runes, preferring to cut on whitespace so words stay intact.
type Chunker struct {
	Size    int
	Overlap int
}

// DefaultChunker matches the ingestion defaults: 1000-rune chunks with a
// 200-rune overlap.
func DefaultChunker() Chunker {
	return Chunker{Size: 1000, Overlap: 200}
}

// Split breaks text into chunks. Empty and whitespace-only inputs yield
// no chunks. The output is deterministic for a given input and chunker.
func (c Chunker) Split(text string) []string {
	size := c.Size
	if size <= 0 {
		size = 1000
	}
	overlap := c.Overlap
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			// Backtrack to the nearest whitespace, but never give up
			// more than a fifth of the window.
			cut := end
			for cut > start+size-size/5 && !unicode.IsSpace(runes[cut-1]) {
				cut--
			}
			if cut > start+size-size/5 {
				end = cut
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}
		// Always move forward, even if backtracking plus a large overlap
		// would otherwise stall.
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// ChunkID derives the deterministic ID of a document's nth chunk.
// Determinism is what makes re-ingestion overwrite instead of duplicate.
func ChunkID(documentID string, ordinal int) string {
	return fmt.Sprintf("%s#%04d", documentID, ordinal)
}

// ChunkDocument splits a document's text and replicates the document's
// access metadata onto every resulting chunk.
func (c Chunker) ChunkDocument(doc catalog.Document, text string) []vectordb.Chunk {
	pieces := c.Split(text)
	chunks := make([]vectordb.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, vectordb.Chunk{
			ID:   ChunkID(doc.ID, i),
			Text: piece,
			Metadata: vectordb.ChunkMetadata{
				DocumentID:        doc.ID,
				Filename:          doc.Filename,
				AccessLevel:       string(doc.AccessLevel),
				AllowedStudentIDs: doc.AllowedStudentIDs,
				ClassGroup:        doc.ClassGroup,
				OwnerID:           doc.OwnerID,
				IngestedAt:        doc.CreatedAt,
			},
		})
	}
	return chunks
}
