package vectorindex

import (
	"math"
	"sort"
	"sync"
)

// Hit is a single search match: the position of the stored vector and its
// cosine similarity to the query.
type Hit struct {
	Position int
	Score    float64
}

// Index is an exact in-memory cosine-similarity index. Vectors are stored
// L2-normalised so similarity is a plain inner product.
type Index struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
}

// New creates an empty, unbuilt index.
func New() *Index { return &Index{} }

// Build replaces the contents of the index with the normalised vectors.
// The index is left untouched if the input is empty or inconsistent.
func (i *Index) Build(vectors [][]float32) error {
	if len(vectors) == 0 {
		return ErrEmptyIndex
	}
	dim := len(vectors[0])
	if dim == 0 {
		return &ErrDimensionMismatch{Expected: 1, Actual: 0, Position: 0}
	}
	for j := range vectors {
		if len(vectors[j]) != dim {
			return &ErrDimensionMismatch{Expected: dim, Actual: len(vectors[j]), Position: j}
		}
	}
	normalized := make([][]float32, len(vectors))
	for j := range vectors {
		normalized[j] = normalize(vectors[j])
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.dimension = dim
	i.vectors = normalized
	return nil
}

// Rebuild discards the current state and builds from vectors.
func (i *Index) Rebuild(vectors [][]float32) error {
	return i.Build(vectors)
}

// Append normalises and adds one vector, returning its position. Appending
// to an unbuilt index establishes the dimension.
func (i *Index) Append(vector []float32) (int, error) {
	if len(vector) == 0 {
		return -1, &ErrDimensionMismatch{Expected: i.Dim(), Actual: 0, Position: -1}
	}
	v := normalize(vector)
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.dimension == 0 {
		i.dimension = len(v)
	}
	if len(v) != i.dimension {
		return -1, &ErrDimensionMismatch{Expected: i.dimension, Actual: len(v), Position: -1}
	}
	i.vectors = append(i.vectors, v)
	return len(i.vectors) - 1, nil
}

// Search returns the k stored vectors most similar to query in descending
// score order. Equal scores are ordered by ascending position. k is clamped
// to the number of stored vectors; k <= 0 yields no hits.
func (i *Index) Search(query []float32, k int) ([]Hit, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if k <= 0 || len(i.vectors) == 0 {
		return []Hit{}, nil
	}
	if len(query) != i.dimension {
		return nil, &ErrDimensionMismatch{Expected: i.dimension, Actual: len(query), Position: -1}
	}
	q := normalize(query)
	hits := make([]Hit, len(i.vectors))
	for j := range i.vectors {
		hits[j] = Hit{Position: j, Score: clamp(dot(i.vectors[j], q))}
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Position < hits[b].Position
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k:k], nil
}

// Truncate drops every vector at position n and beyond. It is used to roll
// back a partially applied mutation.
func (i *Index) Truncate(n int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n < len(i.vectors) {
		i.vectors = i.vectors[:n:n]
	}
}

// Len returns the number of stored vectors.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.vectors)
}

// Dim returns the index dimension, or 0 before the first build.
func (i *Index) Dim() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.dimension
}

// Vector returns a copy of the normalised vector at position j.
func (i *Index) Vector(j int) ([]float32, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if j < 0 || j >= len(i.vectors) {
		return nil, false
	}
	return append([]float32(nil), i.vectors[j]...), true
}

// normalize returns a unit-length copy of v. A zero vector stays zero.
func normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	norm := math.Sqrt(dot(v, v))
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		copy(out, v)
		return out
	}
	for j := range v {
		out[j] = float32(float64(v[j]) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for j := range a {
		sum += float64(a[j]) * float64(b[j])
	}
	return sum
}

func clamp(s float64) float64 {
	switch {
	case math.IsNaN(s):
		return -1
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}
