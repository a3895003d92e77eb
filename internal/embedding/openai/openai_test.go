package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers /embeddings with vector {len(text), 1} per input,
// listing data entries in reverse order.
func fakeServer(t *testing.T, calls *atomic.Int32, failFirst int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if n <= failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req embeddingsRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Index: i, Embedding: []float32{float32(len(req.Input[i])), 1}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
}

func newTestClient(t *testing.T, url string, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = url
	cfg.APIKey = "test-key"
	cfg.Timeout = 5 * time.Second
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("MENURAG_TEST_EMPTY_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "MENURAG_TEST_EMPTY_KEY"})
	assert.Error(t, err)

	t.Setenv("MENURAG_TEST_KEY", "k")
	c, err := NewClient(Config{APIKeyEnv: "MENURAG_TEST_KEY"})
	require.NoError(t, err)
	assert.Equal(t, "openai:text-embedding-3-small", c.Name())
}

func TestEmbedBatchesInOrder(t *testing.T) {
	var calls atomic.Int32
	srv := fakeServer(t, &calls, 0)
	defer srv.Close()

	c := newTestClient(t, srv.URL, Config{BatchSize: 2, Concurrency: 2})
	assert.Equal(t, 0, c.Dimension())

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := c.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for i, v := range vecs {
		assert.Equal(t, float32(len(texts[i])), v[0])
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2, c.Dimension())
}

func TestEmbedRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := fakeServer(t, &calls, 1)
	defer srv.Close()

	c := newTestClient(t, srv.URL, Config{MaxRetries: 2})
	vecs, err := c.Embed(context.Background(), []string{"pho"})
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 1}, vecs[0])
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := fakeServer(t, &calls, 100)
	defer srv.Close()

	c := newTestClient(t, srv.URL, Config{MaxRetries: 1})
	_, err := c.Embed(context.Background(), []string{"pho"})
	assert.ErrorContains(t, err, "503")
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, Config{MaxRetries: 3})
	_, err := c.Embed(context.Background(), []string{"pho"})
	assert.ErrorContains(t, err, "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedOllamaShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[0.5,0.25]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, Config{})
	vecs, err := c.Embed(context.Background(), []string{"pho"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 0.25}}, vecs)
}

func TestEmbedCancelled(t *testing.T) {
	var calls atomic.Int32
	srv := fakeServer(t, &calls, 100)
	defer srv.Close()

	c := newTestClient(t, srv.URL, Config{MaxRetries: 5})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Embed(ctx, []string{"pho"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEmbedEmpty(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid", Config{})
	vecs, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestDecodeIndices(t *testing.T) {
	t.Run("Reordered", func(t *testing.T) {
		vecs, err := decode([]byte(`{"data":[{"index":1,"embedding":[2]},{"index":0,"embedding":[1]}]}`), 2)
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1}, {2}}, vecs)
	})
	t.Run("Duplicate", func(t *testing.T) {
		_, err := decode([]byte(`{"data":[{"index":0,"embedding":[1]},{"index":0,"embedding":[2]}]}`), 2)
		assert.ErrorContains(t, err, "unexpected index")
	})
	t.Run("OutOfRange", func(t *testing.T) {
		_, err := decode([]byte(`{"data":[{"index":0,"embedding":[1]},{"index":5,"embedding":[2]}]}`), 2)
		assert.Error(t, err)
	})
}
