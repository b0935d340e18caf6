package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/gk6450/mcq-gen/internal/config"
	"github.com/gk6450/mcq-gen/internal/embedding"
	"github.com/gk6450/mcq-gen/internal/models"
	"github.com/gk6450/mcq-gen/internal/storage"
	"github.com/gk6450/mcq-gen/internal/vector"
)

// newTestPipeline wires a pipeline over sqlite, the in-process vector store,
// and the deterministic embedder, with PDF extraction stubbed to fixed pages.
func newTestPipeline(t *testing.T, pages []models.PageText) (*Pipeline, storage.Ledger, *vector.LocalStore) {
	t.Helper()
	dir := t.TempDir()
	ledger, err := storage.NewSQLLedger(config.DriverSQLite, filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ledger.Close() })
	store, err := vector.NewLocalStore(filepath.Join(dir, "vectors.idx"))
	if err != nil {
		t.Fatal(err)
	}
	gateway := vector.NewGateway(store, 128, zap.NewNop())
	p := NewPipeline(ledger, embedding.NewMockEmbedder(8), gateway, NewChunker(400, 50), zap.NewNop(),
		WithExtractor(func([]byte) ([]models.PageText, error) { return pages, nil }))
	return p, ledger, store
}

func TestPipeline_Ingest(t *testing.T) {
	pages := []models.PageText{
		{Page: 1, Text: "alpha beta gamma delta"},
		{Page: 2, Text: "epsilon zeta eta"},
	}
	p, ledger, store := newTestPipeline(t, pages)
	ctx := context.Background()

	res, err := p.Ingest(ctx, IngestInput{BookID: "b1", Title: "Physics"})
	if err != nil {
		t.Fatal(err)
	}
	if res.BookID != "b1" || res.Inserted != 2 || res.Skipped != 0 {
		t.Errorf("result: %+v", res)
	}
	if store.Size() != 2 {
		t.Errorf("expected 2 vectors, got %d", store.Size())
	}
	book, err := ledger.GetBook(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if book.InsertedChunks != 2 || book.Title != "Physics" || !book.Active {
		t.Errorf("book: %+v", book)
	}
}

func TestPipeline_IngestIdempotent(t *testing.T) {
	pages := []models.PageText{{Page: 1, Text: "alpha beta gamma"}}
	p, ledger, store := newTestPipeline(t, pages)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, IngestInput{BookID: "b1"}); err != nil {
		t.Fatal(err)
	}
	// Break the embedder: the second ingest must short-circuit before it.
	p.embedder = failingEmbedder{}
	res, err := p.Ingest(ctx, IngestInput{BookID: "b1"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 0 || res.Skipped != 1 {
		t.Errorf("re-ingest should skip everything: %+v", res)
	}
	if store.Size() != 1 {
		t.Errorf("expected 1 vector, got %d", store.Size())
	}
	book, err := ledger.GetBook(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if book.InsertedChunks != 1 {
		t.Errorf("gauge: %d", book.InsertedChunks)
	}
}

func TestPipeline_IngestAssignsBookID(t *testing.T) {
	p, _, _ := newTestPipeline(t, []models.PageText{{Page: 1, Text: "some text"}})
	res, err := p.Ingest(context.Background(), IngestInput{})
	if err != nil {
		t.Fatal(err)
	}
	if res.BookID == "" {
		t.Error("book id should be generated")
	}
}

func TestPipeline_IngestRejectsBadChapters(t *testing.T) {
	p, _, _ := newTestPipeline(t, []models.PageText{{Page: 1, Text: "text"}})
	_, err := p.Ingest(context.Background(), IngestInput{
		BookID:   "b1",
		Chapters: []models.ChapterSpec{{Name: "ch1", StartPage: 5, EndPage: 2}},
	})
	if err == nil {
		t.Error("inverted page range should be rejected")
	}
}

func TestPipeline_IngestEmptyBookStillUpsertsRow(t *testing.T) {
	p, ledger, store := newTestPipeline(t, []models.PageText{{Page: 1, Text: "  "}})
	p.embedder = failingEmbedder{}
	ctx := context.Background()

	res, err := p.Ingest(ctx, IngestInput{BookID: "b1", Title: "Empty"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 0 || res.Skipped != 0 {
		t.Errorf("result: %+v", res)
	}
	if store.Size() != 0 {
		t.Errorf("no vectors expected, got %d", store.Size())
	}
	book, err := ledger.GetBook(ctx, "b1")
	if err != nil {
		t.Fatalf("book row should exist: %v", err)
	}
	if book.InsertedChunks != 0 {
		t.Errorf("gauge: %d", book.InsertedChunks)
	}
}

func TestPipeline_IngestPreservesMetadataOnReingest(t *testing.T) {
	p, ledger, _ := newTestPipeline(t, []models.PageText{{Page: 1, Text: "alpha beta"}})
	ctx := context.Background()

	if _, err := p.Ingest(ctx, IngestInput{BookID: "b1", Title: "Physics", Owner: "alice"}); err != nil {
		t.Fatal(err)
	}
	first, err := ledger.GetBook(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Ingest(ctx, IngestInput{BookID: "b1"}); err != nil {
		t.Fatal(err)
	}
	second, err := ledger.GetBook(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if second.Title != "Physics" || second.Owner != "alice" {
		t.Errorf("metadata should survive re-ingest: %+v", second)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed: %v vs %v", first.CreatedAt, second.CreatedAt)
	}
}

func TestPipeline_IngestIntraBatchDedup(t *testing.T) {
	// Two pages with identical text: same content hash within one batch.
	pages := []models.PageText{
		{Page: 1, Text: "repeated content"},
		{Page: 2, Text: "repeated content"},
	}
	p, _, store := newTestPipeline(t, pages)
	res, err := p.Ingest(context.Background(), IngestInput{BookID: "b1"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 1 || res.Skipped != 1 {
		t.Errorf("first occurrence wins: %+v", res)
	}
	if store.Size() != 1 {
		t.Errorf("expected 1 vector, got %d", store.Size())
	}
}

func TestPipeline_IngestEmbedFailureLeavesNoLedgerRows(t *testing.T) {
	p, ledger, _ := newTestPipeline(t, []models.PageText{{Page: 1, Text: "alpha beta"}})
	p.embedder = failingEmbedder{}
	ctx := context.Background()

	if _, err := p.Ingest(ctx, IngestInput{BookID: "b1"}); err == nil {
		t.Fatal("expected embed failure")
	}
	count, err := ledger.CountChunks(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("failed ingest must not persist chunks, got %d", count)
	}
}

func TestPipeline_Delete(t *testing.T) {
	p, ledger, store := newTestPipeline(t, []models.PageText{{Page: 1, Text: "alpha beta"}})
	ctx := context.Background()

	if _, err := p.Ingest(ctx, IngestInput{BookID: "b1"}); err != nil {
		t.Fatal(err)
	}
	res, err := p.Delete(ctx, "b1", true)
	if err != nil {
		t.Fatal(err)
	}
	if !res.VectorDeleted || !res.LedgerDeleted {
		t.Errorf("result: %+v", res)
	}
	if store.Size() != 0 {
		t.Errorf("vectors should be gone, got %d", store.Size())
	}
	if _, err := ledger.GetBook(ctx, "b1"); !errors.Is(err, storage.ErrBookNotFound) {
		t.Errorf("book should be gone, got %v", err)
	}
}

func TestPipeline_DeleteVectorFailureStillCleansLedger(t *testing.T) {
	p, ledger, _ := newTestPipeline(t, []models.PageText{{Page: 1, Text: "alpha beta"}})
	ctx := context.Background()
	if _, err := p.Ingest(ctx, IngestInput{BookID: "b1"}); err != nil {
		t.Fatal(err)
	}
	p.gateway = vector.NewGateway(failingStore{}, 128, zap.NewNop())

	res, err := p.Delete(ctx, "b1", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.VectorDeleted {
		t.Error("vector delete should be reported failed")
	}
	if !res.LedgerDeleted {
		t.Error("ledger delete should still run")
	}
	if _, err := ledger.GetBook(ctx, "b1"); !errors.Is(err, storage.ErrBookNotFound) {
		t.Errorf("book should be gone, got %v", err)
	}
}

// failingEmbedder errors on every call.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedder down")
}
func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedder down")
}
func (failingEmbedder) Dimensions() int { return 0 }
func (failingEmbedder) Close() error    { return nil }

// failingStore errors on every call.
type failingStore struct{}

func (failingStore) HasIndex(context.Context) (bool, error) { return false, errors.New("store down") }
func (failingStore) CreateIndex(context.Context, int) error { return errors.New("store down") }
func (failingStore) Upsert(context.Context, []vector.Record) error {
	return errors.New("store down")
}
func (failingStore) Query(context.Context, []float32, int, *vector.Filter) ([]vector.Match, error) {
	return nil, errors.New("store down")
}
func (failingStore) DeleteByFilter(context.Context, *vector.Filter) error {
	return errors.New("store down")
}
func (failingStore) Close() error { return nil }
