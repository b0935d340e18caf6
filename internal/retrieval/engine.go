// Package retrieval embeds queries, searches the vector index, and hydrates
// the matches from the ledger.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gk6450/mcq-gen/internal/embedding"
	"github.com/gk6450/mcq-gen/internal/models"
	"github.com/gk6450/mcq-gen/internal/storage"
	"github.com/gk6450/mcq-gen/internal/vector"
)

// Engine answers scoped similarity queries over ingested books.
type Engine struct {
	ledger      storage.Ledger
	embedder    embedding.Embedder
	gateway     *vector.Gateway
	defaultTopK int
	logger      *zap.Logger
}

// NewEngine creates a retrieval engine. defaultTopK applies when a request
// leaves top_k unset.
func NewEngine(ledger storage.Ledger, embedder embedding.Embedder, gateway *vector.Gateway, defaultTopK int, logger *zap.Logger) *Engine {
	if defaultTopK <= 0 {
		defaultTopK = 8
	}
	return &Engine{
		ledger:      ledger,
		embedder:    embedder,
		gateway:     gateway,
		defaultTopK: defaultTopK,
		logger:      logger,
	}
}

// Retrieve embeds the query and returns the topK most similar chunks within
// the book/chapter scope. When the scoped query matches nothing, one
// unfiltered query runs as a fallback; an empty result after that is returned
// as an empty slice, not an error.
func (e *Engine) Retrieve(ctx context.Context, bookID string, chapters []string, query string, topK int) ([]models.RetrievedChunk, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if topK <= 0 {
		topK = e.defaultTopK
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	filter := &vector.Filter{BookID: bookID, Chapters: chapters}
	matches, err := e.gateway.Query(ctx, vec, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	if len(matches) == 0 && (bookID != "" || len(chapters) > 0) {
		e.logger.Warn("scoped retrieval empty, falling back to unfiltered query",
			zap.String("book_id", bookID), zap.Strings("chapters", chapters))
		matches, err = e.gateway.Query(ctx, vec, topK, nil)
		if err != nil {
			return nil, fmt.Errorf("fallback vector query failed: %w", err)
		}
	}
	if len(matches) == 0 {
		return []models.RetrievedChunk{}, nil
	}
	return e.hydrate(ctx, matches)
}

// hydrate joins the matches with ledger rows, keeping the index's ranking
// order. A match whose ledger row is gone falls back to the preview stored in
// vector metadata.
func (e *Engine) hydrate(ctx context.Context, matches []vector.Match) ([]models.RetrievedChunk, error) {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	rows, err := e.ledger.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	byID := make(map[string]*models.Chunk, len(rows))
	for _, ch := range rows {
		byID[ch.ChunkID] = ch
	}
	results := make([]models.RetrievedChunk, 0, len(matches))
	for _, m := range matches {
		rc := models.RetrievedChunk{
			ChunkID:     m.ID,
			Score:       m.Score,
			ChapterName: m.Metadata.ChapterName,
			Page:        m.Metadata.Page,
			FullText:    m.Metadata.TextPreview,
		}
		if ch, ok := byID[m.ID]; ok {
			rc.ChapterName = ch.ChapterName
			rc.Page = ch.Page
			rc.FullText = ch.Text
		} else {
			e.logger.Debug("ledger row missing for match, using stored preview",
				zap.String("chunk_id", m.ID))
		}
		results = append(results, rc)
	}
	return results, nil
}
