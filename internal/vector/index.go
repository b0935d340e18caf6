// Package vector provides the vector store abstraction, a local
// implementation, a Pinecone-backed implementation, and the gateway that
// the ingestion and retrieval pipelines talk to.
package vector

import "context"

// Metadata travels with each vector. TextPreview is lossy (bounded bytes);
// the full chunk text lives only in the ledger and retrieval re-joins by ID.
type Metadata struct {
	BookID      string `json:"book_id"`
	ChapterName string `json:"chapter_name"`
	Page        int    `json:"page"`
	ChunkIndex  int    `json:"chunk_index"`
	TextPreview string `json:"text_preview"`
}

// Record is one vector upsert: repeated upserts of the same ID overwrite.
type Record struct {
	ID       string    `json:"id"`
	Values   []float32 `json:"values"`
	Metadata Metadata  `json:"metadata"`
}

// Match is one similarity hit, ranked by cosine score.
type Match struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Filter restricts queries and deletes by metadata. BookID matches with
// equality; Chapters, when non-empty, matches any of the listed labels.
// A nil *Filter means the whole index.
type Filter struct {
	BookID   string
	Chapters []string
}

// Matches reports whether md satisfies the filter.
func (f *Filter) Matches(md Metadata) bool {
	if f == nil {
		return true
	}
	if f.BookID != "" && md.BookID != f.BookID {
		return false
	}
	if len(f.Chapters) > 0 {
		for _, ch := range f.Chapters {
			if md.ChapterName == ch {
				return true
			}
		}
		return false
	}
	return true
}

// Store is a vector index backend. CreateIndex fixes the dimensionality for
// the index's lifetime; Upsert and Query vectors must match it.
type Store interface {
	HasIndex(ctx context.Context) (bool, error)
	CreateIndex(ctx context.Context, dimensions int) error
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vec []float32, topK int, filter *Filter) ([]Match, error)
	DeleteByFilter(ctx context.Context, filter *Filter) error
	Close() error
}
