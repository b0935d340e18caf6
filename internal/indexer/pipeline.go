package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gk6450/mcq-gen/internal/embedding"
	"github.com/gk6450/mcq-gen/internal/extract"
	"github.com/gk6450/mcq-gen/internal/models"
	"github.com/gk6450/mcq-gen/internal/storage"
	"github.com/gk6450/mcq-gen/internal/vector"
	"github.com/gk6450/mcq-gen/pkg/utils"
)

// previewLen caps the text stored in vector metadata; the ledger keeps the
// full chunk text.
const previewLen = 800

// IngestInput describes one book ingestion request.
type IngestInput struct {
	BookID   string // empty: a fresh uuid is assigned
	Title    string
	Owner    string
	PDF      []byte
	Chapters []models.ChapterSpec
}

// Pipeline orchestrates ingestion and deletion across the extractor,
// embedder, vector gateway, and ledger.
type Pipeline struct {
	ledger   storage.Ledger
	embedder embedding.Embedder
	gateway  *vector.Gateway
	chunker  *Chunker
	logger   *zap.Logger

	extractPages func(content []byte) ([]models.PageText, error)
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithExtractor replaces the PDF page extractor (tests use fixed pages).
func WithExtractor(fn func(content []byte) ([]models.PageText, error)) PipelineOption {
	return func(p *Pipeline) { p.extractPages = fn }
}

// NewPipeline creates a pipeline with the given dependencies.
func NewPipeline(ledger storage.Ledger, embedder embedding.Embedder, gateway *vector.Gateway, chunker *Chunker, logger *zap.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		ledger:       ledger,
		embedder:     embedder,
		gateway:      gateway,
		chunker:      chunker,
		logger:       logger,
		extractPages: extract.Pages,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest runs the full pipeline for one PDF: extract, chunk, dedup against
// the ledger, embed, index, then persist. The ledger chunk write is last, so
// a failure anywhere earlier leaves no ledger rows and the next attempt
// re-processes the same chunks.
func (p *Pipeline) Ingest(ctx context.Context, input IngestInput) (*models.IngestResult, error) {
	bookID := input.BookID
	if bookID == "" {
		bookID = uuid.New().String()
	}
	if err := models.ValidateChapters(input.Chapters); err != nil {
		return nil, fmt.Errorf("invalid chapters: %w", err)
	}
	pages, err := p.extractPages(input.PDF)
	if err != nil {
		return nil, fmt.Errorf("failed to extract pdf: %w", err)
	}
	candidates := p.chunker.PrepareChunks(bookID, pages, input.Chapters)

	existing, err := p.ledger.ChunkHashes(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunk hashes: %w", err)
	}
	fresh := make([]*models.Chunk, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, ch := range candidates {
		if _, ok := existing[ch.Hash]; ok {
			continue
		}
		// Intra-batch duplicate: first occurrence wins.
		if _, ok := seen[ch.Hash]; ok {
			continue
		}
		seen[ch.Hash] = struct{}{}
		fresh = append(fresh, ch)
	}
	skipped := len(candidates) - len(fresh)

	if len(fresh) == 0 {
		p.logger.Info("no new chunks to ingest",
			zap.String("book_id", bookID), zap.Int("skipped", skipped))
		if err := p.upsertBookGauge(ctx, bookID, input.Title, input.Owner); err != nil {
			return nil, err
		}
		return &models.IngestResult{BookID: bookID, Skipped: skipped}, nil
	}

	texts := make([]string, len(fresh))
	for i, ch := range fresh {
		texts[i] = ch.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if err := p.gateway.EnsureIndex(ctx, len(vectors[0])); err != nil {
		return nil, fmt.Errorf("failed to ensure index: %w", err)
	}
	records := make([]vector.Record, len(fresh))
	for i, ch := range fresh {
		records[i] = vector.Record{
			ID:     ch.ChunkID,
			Values: vectors[i],
			Metadata: vector.Metadata{
				BookID:      ch.BookID,
				ChapterName: ch.ChapterName,
				Page:        ch.Page,
				ChunkIndex:  ch.ChunkIndex,
				TextPreview: utils.Preview(ch.Text, previewLen),
			},
		}
	}
	if err := p.gateway.Upsert(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to upsert vectors: %w", err)
	}
	if err := p.ledger.BatchCreateChunks(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to persist chunks: %w", err)
	}
	if err := p.upsertBookGauge(ctx, bookID, input.Title, input.Owner); err != nil {
		return nil, err
	}
	p.logger.Info("book ingested",
		zap.String("book_id", bookID),
		zap.Int("inserted", len(fresh)),
		zap.Int("skipped", skipped))
	return &models.IngestResult{BookID: bookID, Inserted: len(fresh), Skipped: skipped}, nil
}

// upsertBookGauge writes the book row with inserted_chunks set to the
// ledger's current count. Existing title/owner/created_at survive when the
// input leaves them empty.
func (p *Pipeline) upsertBookGauge(ctx context.Context, bookID, title, owner string) error {
	book := &models.Book{BookID: bookID, Title: title, Owner: owner, Active: true}
	if prev, err := p.ledger.GetBook(ctx, bookID); err == nil {
		book.CreatedAt = prev.CreatedAt
		if book.Title == "" {
			book.Title = prev.Title
		}
		if book.Owner == "" {
			book.Owner = prev.Owner
		}
	} else if !errors.Is(err, storage.ErrBookNotFound) {
		return fmt.Errorf("failed to load book: %w", err)
	}
	count, err := p.ledger.CountChunks(ctx, bookID)
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}
	book.InsertedChunks = int(count)
	if err := p.ledger.UpsertBook(ctx, book); err != nil {
		return fmt.Errorf("failed to upsert book: %w", err)
	}
	return nil
}

// Delete removes a book from the vector store and the ledger. A vector-store
// failure is downgraded to a warning so the ledger cleanup still runs; the
// result reports each store's outcome.
func (p *Pipeline) Delete(ctx context.Context, bookID string, deleteVectors bool) (*models.DeleteResult, error) {
	result := &models.DeleteResult{BookID: bookID}
	if deleteVectors {
		if err := p.gateway.DeleteByFilter(ctx, &vector.Filter{BookID: bookID}); err != nil {
			p.logger.Warn("vector delete failed, continuing with ledger cleanup",
				zap.String("book_id", bookID), zap.Error(err))
		} else {
			result.VectorDeleted = true
		}
	}
	if err := p.ledger.DeleteChunks(ctx, bookID); err != nil {
		return result, fmt.Errorf("failed to delete chunks: %w", err)
	}
	if err := p.ledger.DeleteBook(ctx, bookID); err != nil {
		return result, fmt.Errorf("failed to delete book: %w", err)
	}
	result.LedgerDeleted = true
	p.logger.Info("book deleted",
		zap.String("book_id", bookID),
		zap.Bool("vector_deleted", result.VectorDeleted))
	return result, nil
}
