package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
)

const defaultHost = "http://localhost:11434"

// Config configures the Ollama embedder.
type Config struct {
	// BaseURL of the Ollama server. Falls back to OLLAMA_HOST, then localhost.
	BaseURL    string
	Model      string
	Timeout    time.Duration
	BatchSize  int
	MaxRetries int
}

// Embedder calls the Ollama /api/embed endpoint.
type Embedder struct {
	client     *api.Client
	model      string
	timeout    time.Duration
	batchSize  int
	maxRetries int

	mu        sync.RWMutex
	dimension int
}

// New creates an Ollama embedder. It does not contact the server.
func New(cfg Config) (*Embedder, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = os.Getenv("OLLAMA_HOST")
	}
	if raw == "" {
		raw = defaultHost
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", raw, err)
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Embedder{
		client:     api.NewClient(base, &http.Client{Timeout: cfg.Timeout}),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "ollama:" + e.model }

// Prepare is a no-op; the model is fixed server-side.
func (e *Embedder) Prepare(context.Context, []string) error { return nil }

// Dimension returns the vector size, known after the first successful call.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

// Embed sends texts in batches and returns one vector per text.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	if len(out) == 0 {
		return out, nil
	}
	dim := len(out[0])
	for i, v := range out {
		if len(v) != dim {
			return nil, fmt.Errorf("ollama embed: inconsistent dimension at %d: %d != %d", i, len(v), dim)
		}
	}
	e.mu.Lock()
	if e.dimension == 0 {
		e.dimension = dim
	}
	e.mu.Unlock()
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	req := &api.EmbedRequest{
		Model: e.model,
		Input: batch,
	}
	var lastErr error
	baseDelay := 500 * time.Millisecond
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
		resp, err := e.client.Embed(reqCtx, req)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("ollama embed: got %d vectors for %d inputs", len(resp.Embeddings), len(batch))
		}
		return resp.Embeddings, nil
	}
	return nil, fmt.Errorf("ollama embed failed after %d attempts: %w", e.maxRetries+1, lastErr)
}
