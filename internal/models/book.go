// Package models defines core data structures for books, chunks, and retrieval results.
package models

import "time"

// Book represents an ingested PDF document and its indexing metadata.
// InsertedChunks is a gauge: it reflects the ledger's current chunk count
// for the book, not a running increment.
type Book struct {
	BookID         string    `json:"book_id" db:"book_id"`
	Title          string    `json:"title,omitempty" db:"title"`
	Owner          string    `json:"owner,omitempty" db:"owner"`
	InsertedChunks int       `json:"inserted_chunks" db:"inserted_chunks"`
	Active         bool      `json:"active" db:"active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Chunk is the unit of embedding and retrieval: an overlapping token window
// of one page's text. Chunks are immutable once created. (book_id, hash) is
// unique within the ledger; ChunkID is never reused.
type Chunk struct {
	ChunkID     string `json:"chunk_id" db:"chunk_id"`
	BookID      string `json:"book_id" db:"book_id"`
	ChapterName string `json:"chapter_name" db:"chapter_name"`
	Page        int    `json:"page" db:"page"`
	ChunkIndex  int    `json:"chunk_index" db:"chunk_index"`
	Hash        string `json:"chunk_hash" db:"chunk_hash"`
	Text        string `json:"text" db:"full_text"`
}

// PageText is one page of extracted PDF text. Page numbers are 1-based.
type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// ChapterSpec maps an inclusive, 1-based page range to a chapter name.
// When ranges overlap, the first matching spec in list order wins.
type ChapterSpec struct {
	Name      string `json:"name" yaml:"name"`
	StartPage int    `json:"start_page" yaml:"start_page"`
	EndPage   int    `json:"end_page" yaml:"end_page"`
}

// DefaultChapterName labels chunks when no chapter spec covers their page.
const DefaultChapterName = "full"

// IngestResult is the outcome of one ingest call.
type IngestResult struct {
	BookID   string `json:"book_id"`
	Inserted int    `json:"inserted_chunks"`
	Skipped  int    `json:"skipped_chunks"`
}

// DeleteResult reports the outcome of the two-step book deletion. The vector
// store and the ledger can fail independently; callers see both outcomes
// instead of a single collapsed bool.
type DeleteResult struct {
	BookID        string `json:"book_id"`
	VectorDeleted bool   `json:"vector_deleted"`
	LedgerDeleted bool   `json:"ledger_deleted"`
}

// RetrievedChunk is one ranked retrieval hit, hydrated with the full text
// from the ledger (or the index's stored preview when the ledger row is gone).
type RetrievedChunk struct {
	ChunkID     string  `json:"chunk_id"`
	Score       float64 `json:"score"`
	ChapterName string  `json:"chapter_name"`
	Page        int     `json:"page"`
	FullText    string  `json:"full_text"`
}
