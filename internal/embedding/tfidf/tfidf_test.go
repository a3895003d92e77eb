package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var menuCorpus = []string{
	"Pho: Vietnamese beef noodle soup Category: Soup Ingredients: rice noodles, beef, herbs",
	"Banh Mi: Baguette sandwich with pork Category: Sandwich",
	"Ca Phe Sua Da: Iced coffee with condensed milk",
}

func cosine(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestPrepare(t *testing.T) {
	e := NewEmbedder()
	assert.Equal(t, 0, e.Dimension())
	assert.Empty(t, e.Fingerprint())

	require.NoError(t, e.Prepare(context.Background(), menuCorpus))
	assert.Greater(t, e.Dimension(), 0)
	fp := e.Fingerprint()
	assert.NotEmpty(t, fp)

	t.Run("FailureKeepsVocabulary", func(t *testing.T) {
		assert.Error(t, e.Prepare(context.Background(), nil))
		assert.Error(t, e.Prepare(context.Background(), []string{"the and of"}))
		assert.Equal(t, fp, e.Fingerprint())
	})

	t.Run("FingerprintTracksVocabulary", func(t *testing.T) {
		other := NewEmbedder()
		require.NoError(t, other.Prepare(context.Background(), menuCorpus[:1]))
		assert.NotEqual(t, fp, other.Fingerprint())

		same := NewEmbedder()
		require.NoError(t, same.Prepare(context.Background(), menuCorpus))
		assert.Equal(t, fp, same.Fingerprint())
	})

	t.Run("FingerprintTracksDocumentFrequency", func(t *testing.T) {
		// Same vocabulary, different corpus size and document frequencies.
		a := NewEmbedder()
		require.NoError(t, a.Prepare(context.Background(), []string{"beef noodle soup", "pork sandwich"}))
		b := NewEmbedder()
		require.NoError(t, b.Prepare(context.Background(), []string{"beef noodle soup", "pork sandwich", "beef soup"}))
		assert.Equal(t, a.Dimension(), b.Dimension())
		assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	})
}

func TestEmbed(t *testing.T) {
	ctx := context.Background()

	t.Run("NotPrepared", func(t *testing.T) {
		_, err := NewEmbedder().Embed(ctx, []string{"pho"})
		assert.Error(t, err)
	})

	e := NewEmbedder()
	require.NoError(t, e.Prepare(ctx, menuCorpus))

	vecs, err := e.Embed(ctx, append([]string{"noodle soup", "xyz unknown"}, menuCorpus...))
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	for _, v := range vecs {
		assert.Len(t, v, e.Dimension())
	}

	t.Run("UnitLength", func(t *testing.T) {
		assert.InDelta(t, 1.0, math.Sqrt(cosine(vecs[0], vecs[0])), 1e-6)
	})

	t.Run("UnknownTokensGiveZeroVector", func(t *testing.T) {
		assert.Equal(t, 0.0, cosine(vecs[1], vecs[1]))
	})

	t.Run("QueryMatchesRelevantItem", func(t *testing.T) {
		q := vecs[0]
		pho, banhMi, coffee := cosine(q, vecs[2]), cosine(q, vecs[3]), cosine(q, vecs[4])
		assert.Greater(t, pho, 0.3)
		assert.Equal(t, 0.0, banhMi)
		assert.Equal(t, 0.0, coffee)
	})

	t.Run("Deterministic", func(t *testing.T) {
		again, err := e.Embed(ctx, []string{"noodle soup"})
		require.NoError(t, err)
		assert.Equal(t, vecs[0], again[0])
	})

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := e.Embed(cctx, []string{"pho"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTokenize(t *testing.T) {
	e := NewEmbedder()
	assert.Equal(t, []string{"chef’s", "special", "phở"}, e.tokenize("The Chef’s special: Phở!"))
}
