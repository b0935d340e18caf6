package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// LocalStore is an in-process vector store using brute-force cosine search
// over unit-normalized vectors. Suitable for tests and single-node
// deployments; the Pinecone store covers everything larger.
type LocalStore struct {
	path string

	mu         sync.RWMutex
	dimensions int
	records    map[string]Record
}

// NewLocalStore creates a local store. When path is non-empty, a previously
// saved snapshot is loaded from it and Save persists to it.
func NewLocalStore(path string) (*LocalStore, error) {
	s := &LocalStore{path: path, records: make(map[string]Record)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// HasIndex reports whether CreateIndex has run (directly or via snapshot).
func (s *LocalStore) HasIndex(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions > 0, nil
}

// CreateIndex fixes the store's dimensionality. Calling it again with a
// different dimensionality is an error; same dimensionality is a no-op.
func (s *LocalStore) CreateIndex(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimensions != 0 && s.dimensions != dimensions {
		return fmt.Errorf("index already exists with dimension %d, requested %d", s.dimensions, dimensions)
	}
	s.dimensions = dimensions
	return nil
}

// Upsert writes records, overwriting any existing record with the same ID.
func (s *LocalStore) Upsert(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimensions == 0 {
		return fmt.Errorf("index does not exist; call CreateIndex first")
	}
	for _, rec := range records {
		if len(rec.Values) != s.dimensions {
			return fmt.Errorf("vector %s dimension mismatch: got %d, expected %d", rec.ID, len(rec.Values), s.dimensions)
		}
		values := make([]float32, s.dimensions)
		copy(values, rec.Values)
		rec.Values = values
		s.records[rec.ID] = rec
	}
	return nil
}

// Query returns up to topK records matching the filter, ranked by cosine
// similarity to vec (inner product over normalized vectors).
func (s *LocalStore) Query(ctx context.Context, vec []float32, topK int, filter *Filter) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dimensions == 0 {
		return nil, fmt.Errorf("index does not exist")
	}
	if len(vec) != s.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vec), s.dimensions)
	}
	if topK <= 0 {
		return nil, nil
	}
	matches := make([]Match, 0)
	for _, rec := range s.records {
		if !filter.Matches(rec.Metadata) {
			continue
		}
		var dot float64
		for i := 0; i < s.dimensions; i++ {
			dot += float64(vec[i] * rec.Values[i])
		}
		matches = append(matches, Match{ID: rec.ID, Score: dot, Metadata: rec.Metadata})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteByFilter removes every record matching the filter.
func (s *LocalStore) DeleteByFilter(ctx context.Context, filter *Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if filter.Matches(rec.Metadata) {
			delete(s.records, id)
		}
	}
	return nil
}

// Size returns the number of stored vectors.
func (s *LocalStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

type localSnapshot struct {
	Dimensions int      `json:"dimensions"`
	Records    []Record `json:"records"`
}

// Save persists the store to its snapshot path. No-op when path is empty.
func (s *LocalStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	snap := localSnapshot{Dimensions: s.dimensions, Records: make([]Record, 0, len(s.records))}
	for _, rec := range s.records {
		snap.Records = append(snap.Records, rec)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// load reads a snapshot if one exists; a missing file leaves the store empty.
func (s *LocalStore) load() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap localSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	s.dimensions = snap.Dimensions
	for _, rec := range snap.Records {
		s.records[rec.ID] = rec
	}
	return nil
}

// Close persists the snapshot.
func (s *LocalStore) Close() error {
	return s.Save()
}
