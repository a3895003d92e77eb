package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Record is a single menu item. Name and Description are required; the
// remaining fields are optional and treated as absent when blank.
type Record struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	Price       string `json:"price,omitempty"`
	Ingredients string `json:"ingredients,omitempty"`
}

// UnmarshalJSON accepts price as either a JSON string or a JSON number.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Category    string          `json:"category"`
		Price       json.RawMessage `json:"price"`
		Ingredients string          `json:"ingredients"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	price, err := decodePrice(raw.Price)
	if err != nil {
		return err
	}
	*r = Record{
		Name:        raw.Name,
		Description: raw.Description,
		Category:    raw.Category,
		Price:       price,
		Ingredients: raw.Ingredients,
	}
	return nil
}

func decodePrice(msg json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(msg))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(msg, &n); err != nil {
		return "", fmt.Errorf("price must be a string or number: %w", err)
	}
	return n.String(), nil
}

// Text returns the string that represents the record for embedding:
// "<name>: <description>" followed by labeled optional segments.
func (r Record) Text() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(r.Name))
	b.WriteString(": ")
	b.WriteString(strings.TrimSpace(r.Description))
	if c := strings.TrimSpace(r.Category); c != "" {
		b.WriteString(" Category: ")
		b.WriteString(c)
	}
	if ing := strings.TrimSpace(r.Ingredients); ing != "" {
		b.WriteString(" Ingredients: ")
		b.WriteString(ing)
	}
	return b.String()
}

// SearchResult represents a matching record with its cosine similarity.
// Position is the record's index in the store.
type SearchResult struct {
	Position int
	Record   Record
	Score    float64
}

// Embedder converts free text into numeric vectors. Every call must return
// vectors of the same dimension, and identical text must embed identically.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) error
	// Dimension returns the vector size, or 0 while it is not yet known.
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Fingerprinter is implemented by embedders whose output depends on state
// beyond their name, such as a corpus-derived vocabulary.
type Fingerprinter interface {
	Fingerprint() string
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// RetrievalService defines the query-side operations exposed by the engine.
type RetrievalService interface {
	Search(ctx context.Context, query string, topK int, threshold float64) ([]SearchResult, error)
	RenderContext(results []SearchResult) string
}
