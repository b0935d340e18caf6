package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultControlPlaneURL = "https://api.pinecone.io"

// PineconeStore implements Store against the Pinecone REST API with a
// serverless index (cosine metric, aws/us-east-1). The index host is
// resolved from the control plane on first use and cached.
type PineconeStore struct {
	apiKey     string
	indexName  string
	controlURL string
	client     *http.Client
	logger     *zap.Logger

	mu   sync.Mutex
	host string
}

// PineconeOption configures a PineconeStore.
type PineconeOption func(*PineconeStore)

// WithControlPlaneURL overrides the control plane base URL (used in tests).
func WithControlPlaneURL(url string) PineconeOption {
	return func(s *PineconeStore) { s.controlURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) PineconeOption {
	return func(s *PineconeStore) { s.client = c }
}

// NewPineconeStore creates a store for the named index.
func NewPineconeStore(apiKey, indexName string, logger *zap.Logger, opts ...PineconeOption) (*PineconeStore, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("pinecone api key is required")
	}
	if indexName == "" {
		return nil, fmt.Errorf("pinecone index name is required")
	}
	s := &PineconeStore{
		apiKey:     apiKey,
		indexName:  indexName,
		controlURL: defaultControlPlaneURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type pineconeIndexDescription struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Host      string `json:"host"`
}

// HasIndex reports whether the index exists in the project.
func (s *PineconeStore) HasIndex(ctx context.Context) (bool, error) {
	status, body, err := s.do(ctx, http.MethodGet, s.controlURL+"/indexes/"+s.indexName, nil)
	if err != nil {
		return false, err
	}
	switch {
	case status == http.StatusNotFound:
		return false, nil
	case status >= 200 && status < 300:
		var desc pineconeIndexDescription
		if err := json.Unmarshal(body, &desc); err != nil {
			return false, fmt.Errorf("parse index description: %w", err)
		}
		s.mu.Lock()
		s.host = desc.Host
		s.mu.Unlock()
		return true, nil
	default:
		return false, fmt.Errorf("describe index: status %d: %s", status, body)
	}
}

// CreateIndex creates a serverless cosine index with the given dimensionality.
func (s *PineconeStore) CreateIndex(ctx context.Context, dimensions int) error {
	payload := map[string]any{
		"name":      s.indexName,
		"dimension": dimensions,
		"metric":    "cosine",
		"spec": map[string]any{
			"serverless": map[string]any{"cloud": "aws", "region": "us-east-1"},
		},
	}
	status, body, err := s.do(ctx, http.MethodPost, s.controlURL+"/indexes", payload)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("create index: status %d: %s", status, body)
	}
	var desc pineconeIndexDescription
	if err := json.Unmarshal(body, &desc); err == nil && desc.Host != "" {
		s.mu.Lock()
		s.host = desc.Host
		s.mu.Unlock()
	}
	s.logger.Info("created pinecone index",
		zap.String("index", s.indexName), zap.Int("dimensions", dimensions))
	return nil
}

// indexHost returns the cached data-plane base URL, resolving it from the
// control plane if needed.
func (s *PineconeStore) indexHost(ctx context.Context) (string, error) {
	s.mu.Lock()
	host := s.host
	s.mu.Unlock()
	if host == "" {
		ok, err := s.HasIndex(ctx)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("index %s does not exist", s.indexName)
		}
		s.mu.Lock()
		host = s.host
		s.mu.Unlock()
		if host == "" {
			return "", fmt.Errorf("index %s has no host yet", s.indexName)
		}
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host, nil
	}
	return "https://" + host, nil
}

// Upsert writes the records in a single call; the gateway batches above this.
func (s *PineconeStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	host, err := s.indexHost(ctx)
	if err != nil {
		return err
	}
	status, body, err := s.do(ctx, http.MethodPost, host+"/vectors/upsert", map[string]any{"vectors": records})
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("upsert: status %d: %s", status, body)
	}
	return nil
}

type pineconeQueryResponse struct {
	Matches []Match `json:"matches"`
}

// Query returns up to topK matches ranked by cosine similarity.
func (s *PineconeStore) Query(ctx context.Context, vec []float32, topK int, filter *Filter) ([]Match, error) {
	host, err := s.indexHost(ctx)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"vector":          vec,
		"topK":            topK,
		"includeMetadata": true,
	}
	if f := filterJSON(filter); f != nil {
		payload["filter"] = f
	}
	status, body, err := s.do(ctx, http.MethodPost, host+"/query", payload)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("query: status %d: %s", status, body)
	}
	var resp pineconeQueryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse query response: %w", err)
	}
	return resp.Matches, nil
}

// DeleteByFilter removes all vectors matching the filter.
func (s *PineconeStore) DeleteByFilter(ctx context.Context, filter *Filter) error {
	host, err := s.indexHost(ctx)
	if err != nil {
		return err
	}
	payload := map[string]any{}
	if f := filterJSON(filter); f != nil {
		payload["filter"] = f
	} else {
		payload["deleteAll"] = true
	}
	status, body, err := s.do(ctx, http.MethodPost, host+"/vectors/delete", payload)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("delete: status %d: %s", status, body)
	}
	return nil
}

// filterJSON renders the typed filter as a Pinecone metadata predicate.
func filterJSON(filter *Filter) map[string]any {
	if filter == nil {
		return nil
	}
	out := make(map[string]any)
	if filter.BookID != "" {
		out["book_id"] = map[string]any{"$eq": filter.BookID}
	}
	switch len(filter.Chapters) {
	case 0:
	case 1:
		out["chapter_name"] = map[string]any{"$eq": filter.Chapters[0]}
	default:
		out["chapter_name"] = map[string]any{"$in": filter.Chapters}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// do performs one JSON request and returns status and body.
func (s *PineconeStore) do(ctx context.Context, method, url string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Api-Key", s.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("pinecone call: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// Close releases idle connections.
func (s *PineconeStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
