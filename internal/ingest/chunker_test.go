package ingest

import (
	"strings"
	"testing"

	"github.com/ziadkadry99/classrag/internal/access"
	"github.com/ziadkadry99/classrag/internal/catalog"
)

func TestChunker_ShortTextIsOneChunk(t *testing.T) {
	c := Chunker{Size: 100, Overlap: 20}
	chunks := c.Split("a short document")
	if len(chunks) != 1 || chunks[0] != "a short document" {
		t.Fatalf("Split: %v", chunks)
	}
}

func TestChunker_EmptyTextYieldsNothing(t *testing.T) {
	c := Chunker{Size: 100, Overlap: 20}
	for _, text := range []string{"", "   ", "\n\n\t"} {
		if chunks := c.Split(text); len(chunks) != 0 {
			t.Errorf("Split(%q): got %d chunks, want 0", text, len(chunks))
		}
	}
}

func TestChunker_LongTextOverlaps(t *testing.T) {
	c := Chunker{Size: 50, Overlap: 10}
	text := strings.Repeat("alpha beta gamma delta epsilon ", 20)

	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("Split: got %d chunks, want several", len(chunks))
	}
	for i, chunk := range chunks {
		if len([]rune(chunk)) > 50 {
			t.Errorf("chunk %d exceeds size: %d runes", i, len([]rune(chunk)))
		}
	}

	// Deterministic: the same input splits the same way.
	again := c.Split(text)
	if len(again) != len(chunks) {
		t.Fatalf("Split not deterministic: %d vs %d chunks", len(chunks), len(again))
	}
	for i := range chunks {
		if chunks[i] != again[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestChunker_PrefersWordBoundaries(t *testing.T) {
	c := Chunker{Size: 20, Overlap: 0}
	chunks := c.Split("one two three four five six seven eight nine ten")
	for i, chunk := range chunks {
		if strings.HasPrefix(chunk, " ") || strings.HasSuffix(chunk, " ") {
			t.Errorf("chunk %d has ragged whitespace: %q", i, chunk)
		}
	}
}

func TestChunkID_Deterministic(t *testing.T) {
	if ChunkID("doc-1", 0) != "doc-1#0000" {
		t.Errorf("ChunkID: %s", ChunkID("doc-1", 0))
	}
	if ChunkID("doc-1", 12) != "doc-1#0012" {
		t.Errorf("ChunkID: %s", ChunkID("doc-1", 12))
	}
}

func TestChunkDocument_ReplicatesMetadata(t *testing.T) {
	doc := catalog.Document{
		ID:                "doc-1",
		Filename:          "homework.md",
		AccessLevel:       access.LevelSpecificStudents,
		AllowedStudentIDs: []string{"s1", "s2"},
		OwnerID:           "teacher-1",
	}

	c := Chunker{Size: 30, Overlap: 5}
	chunks := c.ChunkDocument(doc, strings.Repeat("solve for x in every case ", 10))
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}

	seen := make(map[string]bool)
	for _, chunk := range chunks {
		if seen[chunk.ID] {
			t.Errorf("duplicate chunk ID %s", chunk.ID)
		}
		seen[chunk.ID] = true

		m := chunk.Metadata
		if m.DocumentID != "doc-1" || m.Filename != "homework.md" || m.OwnerID != "teacher-1" {
			t.Errorf("chunk %s metadata not replicated: %+v", chunk.ID, m)
		}
		if m.AccessLevel != string(access.LevelSpecificStudents) {
			t.Errorf("chunk %s access level: %q", chunk.ID, m.AccessLevel)
		}
		if len(m.AllowedStudentIDs) != 2 {
			t.Errorf("chunk %s allowed IDs: %v", chunk.ID, m.AllowedStudentIDs)
		}
	}
}
