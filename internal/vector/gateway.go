package vector

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Gateway wraps a Store with the pipeline-facing contract: idempotent index
// creation at a fixed dimensionality and upserts in bounded batches.
type Gateway struct {
	store       Store
	upsertBatch int
	logger      *zap.Logger

	mu      sync.Mutex
	ensured int // dimensionality EnsureIndex succeeded with, 0 until then
}

// NewGateway creates a gateway over store. upsertBatch bounds how many
// records go into one store call.
func NewGateway(store Store, upsertBatch int, logger *zap.Logger) *Gateway {
	if upsertBatch <= 0 {
		upsertBatch = 128
	}
	return &Gateway{store: store, upsertBatch: upsertBatch, logger: logger}
}

// EnsureIndex creates the index if it does not exist. Once an index exists,
// its dimensionality is fixed; a later call asking for a different one is an
// error, not a reconciliation.
func (g *Gateway) EnsureIndex(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ensured != 0 {
		if g.ensured != dimensions {
			return fmt.Errorf("index is dimension %d, embeddings are dimension %d", g.ensured, dimensions)
		}
		return nil
	}
	exists, err := g.store.HasIndex(ctx)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if !exists {
		if err := g.store.CreateIndex(ctx, dimensions); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
		g.logger.Info("vector index created", zap.Int("dimensions", dimensions))
	}
	g.ensured = dimensions
	return nil
}

// Upsert writes records sequentially in fixed-size batches. Records carry
// their own IDs, so re-upserting an ID overwrites instead of duplicating.
func (g *Gateway) Upsert(ctx context.Context, records []Record) error {
	for start := 0; start < len(records); start += g.upsertBatch {
		end := start + g.upsertBatch
		if end > len(records) {
			end = len(records)
		}
		if err := g.store.Upsert(ctx, records[start:end]); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end-1, err)
		}
	}
	g.logger.Debug("vector upsert finished", zap.Int("total", len(records)))
	return nil
}

// Query returns up to topK matches for vec; a nil filter queries the whole index.
func (g *Gateway) Query(ctx context.Context, vec []float32, topK int, filter *Filter) ([]Match, error) {
	return g.store.Query(ctx, vec, topK, filter)
}

// DeleteByFilter removes matching vectors. Errors are returned to the caller,
// who decides whether deletion is best-effort (book cleanup downgrades them).
func (g *Gateway) DeleteByFilter(ctx context.Context, filter *Filter) error {
	return g.store.DeleteByFilter(ctx, filter)
}

// Close closes the underlying store.
func (g *Gateway) Close() error {
	return g.store.Close()
}
