package indexer

import (
	"strings"
	"testing"

	"github.com/gk6450/mcq-gen/internal/models"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "w" + string(rune('a'+i%26))
	}
	return strings.Join(parts, " ")
}

func TestChunker_SinglePage(t *testing.T) {
	c := NewChunker(400, 50)
	chunks := c.ChunkPage("b1", models.PageText{Page: 1, Text: words(500)}, nil)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks for 500 words, got %d", len(chunks))
	}
	if got := len(strings.Fields(chunks[0].Text)); got != 400 {
		t.Errorf("first window: %d words", got)
	}
	// Step is 350, so the last window covers words 350..499.
	if got := len(strings.Fields(chunks[1].Text)); got != 150 {
		t.Errorf("final window should be unpadded: %d words", got)
	}
	if chunks[0].ChunkIndex != 0 || chunks[1].ChunkIndex != 1 {
		t.Errorf("chunk indices: %d, %d", chunks[0].ChunkIndex, chunks[1].ChunkIndex)
	}
	for _, ch := range chunks {
		if ch.ChapterName != models.DefaultChapterName {
			t.Errorf("expected default chapter, got %q", ch.ChapterName)
		}
		if ch.Page != 1 || ch.BookID != "b1" || ch.Hash == "" || ch.ChunkID == "" {
			t.Errorf("chunk fields: %+v", ch)
		}
	}
}

func TestChunker_EmptyPage(t *testing.T) {
	c := NewChunker(400, 50)
	if got := c.ChunkPage("b1", models.PageText{Page: 1, Text: "   \n\t "}, nil); got != nil {
		t.Errorf("whitespace-only page should yield no chunks, got %d", len(got))
	}
}

func TestChunker_ShortPage(t *testing.T) {
	c := NewChunker(400, 50)
	chunks := c.ChunkPage("b1", models.PageText{Page: 3, Text: "just a few words"}, nil)
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "just a few words" {
		t.Errorf("text: %q", chunks[0].Text)
	}
}

func TestChunker_StepClamped(t *testing.T) {
	// Overlap >= size is rejected at config load, but the chunker still
	// terminates if handed one.
	c := NewChunker(3, 5)
	chunks := c.ChunkPage("b1", models.PageText{Page: 1, Text: words(6)}, nil)
	if len(chunks) == 0 || len(chunks) > 6 {
		t.Errorf("clamped step should advance one word at a time, got %d chunks", len(chunks))
	}
}

func TestChunker_ChapterAttribution(t *testing.T) {
	c := NewChunker(400, 50)
	chapters := []models.ChapterSpec{
		{Name: "intro", StartPage: 1, EndPage: 2},
		{Name: "also-page-two", StartPage: 2, EndPage: 5},
	}
	pages := []models.PageText{
		{Page: 1, Text: "page one text"},
		{Page: 2, Text: "page two text"},
		{Page: 3, Text: ""},
		{Page: 6, Text: "page six text"},
	}
	chunks := c.PrepareChunks("b1", pages, chapters)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks (empty page skipped), got %d", len(chunks))
	}
	if chunks[0].ChapterName != "intro" {
		t.Errorf("page 1: %q", chunks[0].ChapterName)
	}
	// Overlapping ranges: first spec in list order wins.
	if chunks[1].ChapterName != "intro" {
		t.Errorf("page 2: %q", chunks[1].ChapterName)
	}
	if chunks[2].ChapterName != models.DefaultChapterName {
		t.Errorf("uncovered page: %q", chunks[2].ChapterName)
	}
}

func TestChunker_PerPageIndexRestart(t *testing.T) {
	c := NewChunker(2, 0)
	pages := []models.PageText{
		{Page: 1, Text: "a b c d"},
		{Page: 2, Text: "e f g"},
	}
	chunks := c.PrepareChunks("b1", pages, nil)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	if chunks[2].Page != 2 || chunks[2].ChunkIndex != 0 {
		t.Errorf("index should restart per page: page=%d index=%d", chunks[2].Page, chunks[2].ChunkIndex)
	}
}

func TestChunker_DeterministicHashes(t *testing.T) {
	c := NewChunker(400, 50)
	page := models.PageText{Page: 1, Text: "identical content here"}
	a := c.ChunkPage("b1", page, nil)
	b := c.ChunkPage("b1", page, nil)
	if a[0].Hash != b[0].Hash {
		t.Error("same text should hash identically")
	}
	if a[0].ChunkID == b[0].ChunkID {
		t.Error("chunk IDs should be fresh per call")
	}
}
