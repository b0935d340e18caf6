// Package integration provides end-to-end tests over real sqlite storage and
// the local vector index.
package integration

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/gk6450/mcq-gen/internal/config"
	"github.com/gk6450/mcq-gen/internal/embedding"
	"github.com/gk6450/mcq-gen/internal/indexer"
	"github.com/gk6450/mcq-gen/internal/models"
	"github.com/gk6450/mcq-gen/internal/retrieval"
	"github.com/gk6450/mcq-gen/internal/storage"
	"github.com/gk6450/mcq-gen/internal/vector"
)

func TestIntegration_IngestRetrieveDelete(t *testing.T) {
	dir := t.TempDir()
	ledger, err := storage.NewSQLLedger(config.DriverSQLite, filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()

	store, err := vector.NewLocalStore(filepath.Join(dir, "vectors.idx"))
	if err != nil {
		t.Fatal(err)
	}
	gateway := vector.NewGateway(store, 128, zap.NewNop())
	embedder := embedding.NewMockEmbedder(16)
	defer embedder.Close()

	pages := []models.PageText{
		{Page: 1, Text: "Newton's laws describe the motion of bodies under forces."},
		{Page: 2, Text: "The second law of thermodynamics concerns entropy."},
		{Page: 3, Text: "Optics studies the behavior of light and lenses."},
	}
	pipeline := indexer.NewPipeline(ledger, embedder, gateway, indexer.NewChunker(400, 50), zap.NewNop(),
		indexer.WithExtractor(func([]byte) ([]models.PageText, error) { return pages, nil }))
	engine := retrieval.NewEngine(ledger, embedder, gateway, 8, zap.NewNop())
	ctx := context.Background()

	result, err := pipeline.Ingest(ctx, indexer.IngestInput{
		BookID: "physics",
		Title:  "Physics Primer",
		Chapters: []models.ChapterSpec{
			{Name: "mechanics", StartPage: 1, EndPage: 1},
			{Name: "heat", StartPage: 2, EndPage: 2},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Inserted != 3 || result.Skipped != 0 {
		t.Fatalf("ingest: %+v", result)
	}

	chapters, err := ledger.ListChapters(ctx, "physics")
	if err != nil {
		t.Fatal(err)
	}
	if len(chapters) != 3 { // mechanics, heat, full (page 3 uncovered)
		t.Errorf("chapters: %v", chapters)
	}

	chunks, err := engine.Retrieve(ctx, "physics", []string{"mechanics"},
		"Newton's laws describe the motion of bodies under forces.", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].ChapterName != "mechanics" {
		t.Fatalf("scoped retrieval: %+v", chunks)
	}
	if chunks[0].FullText != pages[0].Text {
		t.Errorf("hydrated text: %q", chunks[0].FullText)
	}

	// Re-ingest is a no-op beyond the gauge refresh.
	again, err := pipeline.Ingest(ctx, indexer.IngestInput{BookID: "physics"})
	if err != nil {
		t.Fatal(err)
	}
	if again.Inserted != 0 || again.Skipped != 3 {
		t.Errorf("re-ingest: %+v", again)
	}

	del, err := pipeline.Delete(ctx, "physics", true)
	if err != nil {
		t.Fatal(err)
	}
	if !del.VectorDeleted || !del.LedgerDeleted {
		t.Errorf("delete: %+v", del)
	}
	chunks, err = engine.Retrieve(ctx, "physics", nil, "Newton's laws", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("index should be empty after delete, got %+v", chunks)
	}
}
