package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menurag/internal/embedding/tfidf"
)

type countingEmbedder struct {
	calls       [][]string
	fingerprint string
	fail        bool
}

func (c *countingEmbedder) Name() string                            { return "counting" }
func (c *countingEmbedder) Prepare(context.Context, []string) error { return nil }
func (c *countingEmbedder) Dimension() int                          { return 0 }
func (c *countingEmbedder) Fingerprint() string                     { return c.fingerprint }

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if c.fail {
		return nil, errors.New("provider down")
	}
	c.calls = append(c.calls, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 0.5}
	}
	return out, nil
}

func TestCacheServesRepeatedTexts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "embeddings.db")
	inner := &countingEmbedder{}

	c, err := Open(inner, path, nil)
	require.NoError(t, err)

	first, err := c.Embed(ctx, []string{"pho", "banh mi", "pho"})
	require.NoError(t, err)
	require.Len(t, inner.calls, 1)
	assert.Equal(t, []string{"pho", "banh mi"}, inner.calls[0])
	assert.Equal(t, first[0], first[2])
	assert.Equal(t, 2, c.Count())
	assert.Equal(t, 2, c.Dimension())

	second, err := c.Embed(ctx, []string{"banh mi", "tea"})
	require.NoError(t, err)
	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"tea"}, inner.calls[1])
	assert.Equal(t, first[1], second[0])

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(3), misses)
	require.NoError(t, c.Close())

	t.Run("PersistsAcrossOpen", func(t *testing.T) {
		again := &countingEmbedder{}
		c2, err := Open(again, path, nil)
		require.NoError(t, err)
		defer c2.Close()
		vecs, err := c2.Embed(ctx, []string{"pho", "tea"})
		require.NoError(t, err)
		assert.Empty(t, again.calls)
		assert.Equal(t, []float32{3, 0.5}, vecs[0])
	})

	t.Run("FingerprintSeparatesEntries", func(t *testing.T) {
		other := &countingEmbedder{fingerprint: "v2"}
		c3, err := Open(other, path, nil)
		require.NoError(t, err)
		defer c3.Close()
		assert.Equal(t, "v2", c3.Fingerprint())
		_, err = c3.Embed(ctx, []string{"pho"})
		require.NoError(t, err)
		assert.Len(t, other.calls, 1)
	})
}

func TestCachePropagatesErrors(t *testing.T) {
	inner := &countingEmbedder{fail: true}
	c, err := Open(inner, filepath.Join(t.TempDir(), "e.db"), nil)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Embed(context.Background(), []string{"pho"})
	assert.EqualError(t, err, "provider down")
	assert.Equal(t, 0, c.Count())
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{1.5, -2, 0, 3.25}
	b := encodeVector(v)
	assert.Len(t, b, 16)
	assert.Equal(t, v, decodeVector(b))
}

func TestCacheTracksTFIDFWeights(t *testing.T) {
	ctx := context.Background()
	corpus := []string{"Pho: beef noodle soup", "Banh Mi: pork sandwich"}
	grown := append(append([]string(nil), corpus...), "Pho: beef soup")

	c, err := Open(tfidf.NewEmbedder(), filepath.Join(t.TempDir(), "embeddings.db"), nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Prepare(ctx, corpus))
	before, err := c.Embed(ctx, corpus[:1])
	require.NoError(t, err)

	// No new terms, but the document frequencies change.
	require.NoError(t, c.Prepare(ctx, grown))
	after, err := c.Embed(ctx, corpus[:1])
	require.NoError(t, err)

	fresh := tfidf.NewEmbedder()
	require.NoError(t, fresh.Prepare(ctx, grown))
	want, err := fresh.Embed(ctx, corpus[:1])
	require.NoError(t, err)

	assert.Equal(t, want[0], after[0])
	assert.NotEqual(t, before[0], after[0])
	_, misses := c.Stats()
	assert.Equal(t, int64(2), misses)
}
