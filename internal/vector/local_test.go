package vector

import (
	"context"
	"path/filepath"
	"testing"
)

func mustLocal(t *testing.T, path string, dim int) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if dim > 0 {
		if err := s.CreateIndex(context.Background(), dim); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func rec(id, bookID, chapter string, values ...float32) Record {
	return Record{
		ID:     id,
		Values: values,
		Metadata: Metadata{
			BookID:      bookID,
			ChapterName: chapter,
			TextPreview: "preview of " + id,
		},
	}
}

func TestLocalStore_UpsertOverwritesByID(t *testing.T) {
	ctx := context.Background()
	s := mustLocal(t, "", 2)
	if err := s.Upsert(ctx, []Record{rec("c1", "b1", "full", 1, 0)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, []Record{rec("c1", "b1", "ch2", 0, 1)}); err != nil {
		t.Fatal(err)
	}
	if s.Size() != 1 {
		t.Errorf("expected 1 record after re-upsert, got %d", s.Size())
	}
	matches, err := s.Query(ctx, []float32{0, 1}, 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Metadata.ChapterName != "ch2" {
		t.Errorf("got %+v", matches)
	}
}

func TestLocalStore_QueryRankingAndFilter(t *testing.T) {
	ctx := context.Background()
	s := mustLocal(t, "", 2)
	err := s.Upsert(ctx, []Record{
		rec("a", "b1", "ch1", 1, 0),
		rec("b", "b1", "ch2", 0.9, 0.1),
		rec("c", "b2", "ch1", 0.8, 0.2),
	})
	if err != nil {
		t.Fatal(err)
	}

	matches, err := s.Query(ctx, []float32{1, 0}, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 || matches[0].ID != "a" || matches[1].ID != "b" {
		t.Errorf("ranking wrong: %+v", matches)
	}

	matches, err = s.Query(ctx, []float32{1, 0}, 10, &Filter{BookID: "b2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].ID != "c" {
		t.Errorf("book filter wrong: %+v", matches)
	}

	matches, err = s.Query(ctx, []float32{1, 0}, 10, &Filter{BookID: "b1", Chapters: []string{"ch2"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].ID != "b" {
		t.Errorf("chapter filter wrong: %+v", matches)
	}

	matches, err = s.Query(ctx, []float32{1, 0}, 10, &Filter{BookID: "b1", Chapters: []string{"nope"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches for unknown chapter: %+v", matches)
	}
}

func TestLocalStore_DimensionChecks(t *testing.T) {
	ctx := context.Background()
	s := mustLocal(t, "", 2)
	if err := s.Upsert(ctx, []Record{rec("x", "b", "full", 1, 2, 3)}); err == nil {
		t.Error("wrong-dimension upsert should fail")
	}
	if _, err := s.Query(ctx, []float32{1}, 5, nil); err == nil {
		t.Error("wrong-dimension query should fail")
	}
	if err := s.CreateIndex(ctx, 3); err == nil {
		t.Error("re-creating with a different dimension should fail")
	}
	if err := s.CreateIndex(ctx, 2); err != nil {
		t.Errorf("same-dimension create should be a no-op: %v", err)
	}
}

func TestLocalStore_UpsertRequiresIndex(t *testing.T) {
	s := mustLocal(t, "", 0)
	if err := s.Upsert(context.Background(), []Record{rec("x", "b", "full", 1)}); err == nil {
		t.Error("upsert before CreateIndex should fail")
	}
}

func TestLocalStore_DeleteByFilter(t *testing.T) {
	ctx := context.Background()
	s := mustLocal(t, "", 1)
	err := s.Upsert(ctx, []Record{
		rec("a", "b1", "full", 1),
		rec("b", "b1", "full", 1),
		rec("c", "b2", "full", 1),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteByFilter(ctx, &Filter{BookID: "b1"}); err != nil {
		t.Fatal(err)
	}
	if s.Size() != 1 {
		t.Errorf("expected 1 record left, got %d", s.Size())
	}
	matches, _ := s.Query(ctx, []float32{1}, 10, nil)
	if len(matches) != 1 || matches[0].ID != "c" {
		t.Errorf("got %+v", matches)
	}
}

func TestLocalStore_SaveAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.idx")
	s := mustLocal(t, path, 2)
	if err := s.Upsert(ctx, []Record{rec("a", "b1", "ch1", 0.6, 0.8)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reloaded := mustLocal(t, path, 0)
	ok, err := reloaded.HasIndex(ctx)
	if err != nil || !ok {
		t.Fatalf("snapshot should restore the index: ok=%v err=%v", ok, err)
	}
	matches, err := reloaded.Query(ctx, []float32{0.6, 0.8}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].ID != "a" || matches[0].Metadata.ChapterName != "ch1" {
		t.Errorf("got %+v", matches)
	}
}
