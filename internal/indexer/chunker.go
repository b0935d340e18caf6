// Package indexer provides page chunking and the ingestion pipeline.
package indexer

import (
	"strings"

	"github.com/google/uuid"

	"github.com/gk6450/mcq-gen/internal/hashing"
	"github.com/gk6450/mcq-gen/internal/models"
)

// Chunker splits page text into overlapping word-based chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// ChunkPage splits one page into overlapping windows. The chunk index restarts
// at zero on every page; an empty or whitespace-only page yields no chunks.
func (c *Chunker) ChunkPage(bookID string, page models.PageText, chapters []models.ChapterSpec) []*models.Chunk {
	words := strings.Fields(page.Text)
	if len(words) == 0 {
		return nil
	}
	chapterName := models.ChapterForPage(chapters, page.Page)
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	chunks := make([]*models.Chunk, 0)
	chunkIndex := 0
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		text := strings.Join(words[i:end], " ")
		chunks = append(chunks, &models.Chunk{
			ChunkID:     uuid.New().String(),
			BookID:      bookID,
			ChapterName: chapterName,
			Page:        page.Page,
			ChunkIndex:  chunkIndex,
			Hash:        hashing.Content(text),
			Text:        text,
		})
		chunkIndex++
		if end >= len(words) {
			break
		}
	}
	return chunks
}

// PrepareChunks chunks every page of a book in page order.
func (c *Chunker) PrepareChunks(bookID string, pages []models.PageText, chapters []models.ChapterSpec) []*models.Chunk {
	chunks := make([]*models.Chunk, 0)
	for _, page := range pages {
		chunks = append(chunks, c.ChunkPage(bookID, page, chapters)...)
	}
	return chunks
}
