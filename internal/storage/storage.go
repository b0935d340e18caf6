// Package storage provides the relational ledger: the store of record for
// which chunks have been durably indexed, and for book metadata.
package storage

import (
	"context"
	"errors"

	"github.com/gk6450/mcq-gen/internal/models"
)

// ErrBookNotFound is returned for lookups of unknown book IDs.
var ErrBookNotFound = errors.New("book not found")

// Ledger defines book and chunk persistence operations.
//
// (book_id, chunk_hash) is unique: the ledger is the backstop that prevents
// duplicate rows when the same content is re-submitted for a book.
type Ledger interface {
	// Book operations. UpsertBook inserts a new book or updates the mutable
	// fields (title, owner, inserted_chunks gauge, active flag) of an
	// existing one.
	UpsertBook(ctx context.Context, book *models.Book) error
	GetBook(ctx context.Context, bookID string) (*models.Book, error)
	ListBooks(ctx context.Context, limit int) ([]*models.Book, error)
	DeleteBook(ctx context.Context, bookID string) error

	// Chunk operations. ChunkHashes returns the set of content hashes
	// already persisted for a book. BatchCreateChunks is a no-op for an
	// empty slice. GetChunksByIDs returns only the rows that exist.
	ChunkHashes(ctx context.Context, bookID string) (map[string]struct{}, error)
	BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error
	GetChunksByIDs(ctx context.Context, chunkIDs []string) ([]*models.Chunk, error)
	CountChunks(ctx context.Context, bookID string) (int64, error)
	DeleteChunks(ctx context.Context, bookID string) error
	ListChapters(ctx context.Context, bookID string) ([]string, error)

	// Stats
	CountBooks(ctx context.Context) (int64, error)
	CountAllChunks(ctx context.Context) (int64, error)

	Close() error
}
