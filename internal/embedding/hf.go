package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gk6450/mcq-gen/internal/config"
)

const hfEndpointFormat = "https://router.huggingface.co/hf-inference/models/%s/pipeline/feature-extraction"

// HFEmbedder calls the Hugging Face inference API for feature extraction.
// Responses are normalized through a shape-resolution cascade; transient
// failures (provider errors, timeouts, unresolved shapes) are retried with
// exponential backoff. The embedding dimensionality is learned from the
// first successful call.
type HFEmbedder struct {
	endpoint   string
	token      string
	client     *http.Client
	batchSize  int
	maxRetries int
	logger     *zap.Logger
	sleep      func(context.Context, time.Duration) error

	mu   sync.Mutex
	dims int
}

// NewHFEmbedder creates an embedder from config. The API token is read from
// the HF_API_TOKEN environment variable and is required.
func NewHFEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) (*HFEmbedder, error) {
	token := os.Getenv("HF_API_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("HF_API_TOKEN is not set; cannot request embeddings")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf(hfEndpointFormat, cfg.Model)
	}
	return &HFEmbedder{
		endpoint:   endpoint,
		token:      token,
		client:     &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
		sleep:      sleepContext,
	}, nil
}

// Embed returns the embedding for a single text.
func (e *HFEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in provider-sized sub-batches and returns one
// vector per input, in input order. Any sub-batch exhausting its retry
// budget fails the whole call; no partial results are returned.
func (e *HFEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedSubBatch(ctx, texts[start:end], start)
		if err != nil {
			return nil, err
		}
		all = append(all, vecs...)
	}

	if len(all) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d vectors, got %d", len(texts), len(all))
	}

	e.mu.Lock()
	if e.dims == 0 && len(all[0]) > 0 {
		e.dims = len(all[0])
	}
	e.mu.Unlock()

	return all, nil
}

// embedSubBatch requests one sub-batch, retrying transient failures with
// exponential backoff plus jitter. offset is the sub-batch's position in the
// full input, for logging only.
func (e *HFEmbedder) embedSubBatch(ctx context.Context, batch []string, offset int) ([][]float32, error) {
	for attempt := 1; ; attempt++ {
		vecs, err := e.requestOnce(ctx, batch, offset)
		if err == nil {
			return vecs, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("embedding canceled for batch %d-%d: %w", offset, offset+len(batch)-1, ctx.Err())
		}
		e.logger.Warn("embedding request failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", e.maxRetries),
			zap.Int("batch_start", offset),
			zap.Int("batch_len", len(batch)),
			zap.Error(err))
		if attempt > e.maxRetries {
			return nil, fmt.Errorf("embedding failed after %d attempts for batch %d-%d: %w",
				attempt, offset, offset+len(batch)-1, err)
		}
		backoff := time.Duration(1<<(attempt-1))*time.Second + time.Duration(rand.Float64()*float64(time.Second))
		e.logger.Debug("retrying embedding request", zap.Duration("backoff", backoff))
		if err := e.sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}
}

// requestOnce performs one provider call and resolves its response shape.
func (e *HFEmbedder) requestOnce(ctx context.Context, batch []string, offset int) ([][]float32, error) {
	payload, err := json.Marshal(map[string]any{"inputs": batch})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider call: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider status %d: %s", resp.StatusCode, snippet(body))
	}

	vecs, broadcast, err := resolveEmbeddings(body, len(batch))
	if err != nil {
		return nil, err
	}
	if broadcast {
		e.logger.Warn("provider returned a single vector for a multi-input batch; repeating it for each input",
			zap.Int("batch_start", offset),
			zap.Int("batch_len", len(batch)))
	}
	return vecs, nil
}

// Dimensions returns the learned embedding dimensionality, or 0 before the
// first successful call.
func (e *HFEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dims
}

// Close releases idle connections.
func (e *HFEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
