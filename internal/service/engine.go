package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"menurag/internal/domain"
	"menurag/internal/logging"
	"menurag/internal/menu"
	"menurag/internal/vectorindex"
)

// State is the lifecycle state of an Engine.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats summarises an engine.
type Stats struct {
	ID         string
	State      State
	TotalItems int
	Model      string
	Dimension  int
	IndexSize  int
}

// Engine owns a record store, the vector index over it and the embedder
// that produced the index. Mutations hold the write lock for their whole
// duration; searches share the read lock.
type Engine struct {
	mu       sync.RWMutex
	id       string
	state    State
	embedder domain.Embedder
	store    *menu.Store
	index    *vectorindex.Index
	// corpus is the text list the embedder was last prepared on.
	corpus   []string
	logger   *logging.Logger
	currency string
}

var _ domain.RetrievalService = (*Engine)(nil)

// NewEngine creates an uninitialized engine around embedder.
func NewEngine(embedder domain.Embedder, opts ...Option) *Engine {
	e := &Engine{
		id:       uuid.NewString(),
		embedder: embedder,
		store:    menu.NewStore(),
		index:    vectorindex.New(),
		logger:   logging.Noop(),
		currency: DefaultCurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("engine_id", e.id)
	return e
}

// Initialize creates an engine and initializes it with records.
func Initialize(ctx context.Context, records []domain.Record, embedder domain.Embedder, opts ...Option) (*Engine, error) {
	e := NewEngine(embedder, opts...)
	if err := e.Initialize(ctx, records); err != nil {
		return nil, err
	}
	return e, nil
}

// Initialize validates records, embeds them and builds the index. Invalid
// records are dropped with a warning. Any failure leaves the engine in
// StateFailed.
func (e *Engine) Initialize(ctx context.Context, records []domain.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.beginInit(); err != nil {
		return err
	}
	return e.initialize(ctx, records)
}

// InitializeFromFile loads the menu at path and initializes from it.
func (e *Engine) InitializeFromFile(ctx context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.beginInit(); err != nil {
		return err
	}
	records, err := menu.LoadFile(ctx, path, e.logger)
	if err != nil {
		return e.fail(ctx, &InitializationError{Reason: "load menu", Err: err})
	}
	return e.initialize(ctx, records)
}

func (e *Engine) beginInit() error {
	switch e.state {
	case StateFailed:
		return ErrFailed
	case StateUninitialized:
		e.state = StateInitializing
		return nil
	default:
		return &InitializationError{Reason: "engine already " + e.state.String()}
	}
}

func (e *Engine) initialize(ctx context.Context, records []domain.Record) error {
	if e.embedder == nil {
		return e.fail(ctx, &InitializationError{Reason: "no embedder"})
	}
	store := menu.NewStore()
	if store.AddAll(ctx, records, e.logger) == 0 {
		return e.fail(ctx, &InitializationError{Reason: "no valid menu items"})
	}
	texts := store.Texts()
	idx, err := e.buildIndex(ctx, e.embedder, texts)
	if err != nil {
		return e.fail(ctx, &InitializationError{Reason: "build index", Err: err})
	}
	e.store = store
	e.index = idx
	e.corpus = texts
	e.state = StateReady
	e.logger.LogBuild(ctx, idx.Len(), idx.Dim(), nil)
	return nil
}

func (e *Engine) fail(ctx context.Context, err error) error {
	e.state = StateFailed
	e.logger.LogBuild(ctx, 0, 0, err)
	return err
}

// buildIndex prepares embedder on texts, embeds them in one batch and
// builds a fresh index. Nothing on the engine is modified.
func (e *Engine) buildIndex(ctx context.Context, embedder domain.Embedder, texts []string) (*vectorindex.Index, error) {
	if err := embedder.Prepare(ctx, texts); err != nil {
		return nil, &EmbeddingError{Op: "prepare", Err: err}
	}
	vecs, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, &EmbeddingError{Op: "embed corpus", Err: err}
	}
	if len(vecs) != len(texts) {
		return nil, &EmbeddingError{Op: "embed corpus", Err: fmt.Errorf("got %d vectors for %d texts", len(vecs), len(texts))}
	}
	idx := vectorindex.New()
	if err := idx.Build(vecs); err != nil {
		return nil, err
	}
	return idx, nil
}

func (e *Engine) checkReady() error {
	switch e.state {
	case StateReady:
		return nil
	case StateFailed:
		return ErrFailed
	default:
		return ErrNotReady
	}
}

// Search embeds query and returns up to topK records scoring at least
// threshold, best first. No match is an empty slice and a nil error.
func (e *Engine) Search(ctx context.Context, query string, topK int, threshold float64) ([]domain.SearchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	results, err := e.search(ctx, query, topK, threshold)
	e.logger.LogSearch(ctx, topK, len(results), threshold, err)
	return results, err
}

func (e *Engine) search(ctx context.Context, query string, topK int, threshold float64) ([]domain.SearchResult, error) {
	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, &EmbeddingError{Op: "embed query", Err: err}
	}
	if len(vecs) != 1 {
		return nil, &EmbeddingError{Op: "embed query", Err: fmt.Errorf("got %d vectors for 1 text", len(vecs))}
	}
	hits, err := e.index.Search(vecs[0], topK)
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Score < threshold {
			continue
		}
		r, ok := e.store.At(h.Position)
		if !ok {
			return nil, fmt.Errorf("service: index position %d has no record", h.Position)
		}
		results = append(results, domain.SearchResult{Position: h.Position, Record: r, Score: h.Score})
	}
	return results, nil
}

// RenderContext formats results with the engine's currency.
func (e *Engine) RenderContext(results []domain.SearchResult) string {
	return RenderContext(results, e.currency)
}

// Context runs Search and renders the results.
func (e *Engine) Context(ctx context.Context, query string, topK int, threshold float64) (string, error) {
	results, err := e.Search(ctx, query, topK, threshold)
	if err != nil {
		return "", err
	}
	return e.RenderContext(results), nil
}

// AddItem validates and appends one record without rebuilding the index.
// An invalid record returns false and a nil error with nothing changed.
// The embedder is not re-prepared, so corpus-derived embedders score the
// new item against the existing vocabulary until Rebuild.
func (e *Engine) AddItem(ctx context.Context, r domain.Record) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkReady(); err != nil {
		return false, err
	}
	if err := menu.Check(r); err != nil {
		e.logger.LogDropped(ctx, "invalid record", err)
		return false, nil
	}
	vecs, err := e.embedder.Embed(ctx, []string{r.Text()})
	if err == nil && len(vecs) != 1 {
		err = fmt.Errorf("got %d vectors for 1 text", len(vecs))
	}
	if err != nil {
		err = &EmbeddingError{Op: "embed item", Err: err}
		e.logger.LogAppend(ctx, r.Name, -1, err)
		return false, err
	}
	if dim := e.index.Dim(); len(vecs[0]) != dim {
		err := &vectorindex.ErrDimensionMismatch{Expected: dim, Actual: len(vecs[0]), Position: -1}
		e.logger.LogAppend(ctx, r.Name, -1, err)
		return false, err
	}

	n := e.index.Len()
	pos, err := e.index.Append(vecs[0])
	if err != nil {
		e.logger.LogAppend(ctx, r.Name, -1, err)
		return false, err
	}
	if _, err := e.store.Add(r); err != nil {
		e.index.Truncate(n)
		e.logger.LogAppend(ctx, r.Name, -1, err)
		return false, err
	}
	if e.index.Len() != e.store.Len() {
		e.index.Truncate(n)
		e.store.Truncate(n)
		return false, fmt.Errorf("service: index/store size mismatch after append")
	}
	e.logger.LogAppend(ctx, r.Name, pos, nil)
	return true, nil
}

// Rebuild re-prepares the embedder on every record and replaces the index.
// On failure the previous index stays in place.
func (e *Engine) Rebuild(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkReady(); err != nil {
		return err
	}
	texts := e.store.Texts()
	idx, err := e.buildIndex(ctx, e.embedder, texts)
	if err != nil {
		e.restorePrepared(ctx)
		e.logger.LogBuild(ctx, len(texts), 0, err)
		return err
	}
	e.index = idx
	e.corpus = texts
	e.logger.LogBuild(ctx, idx.Len(), idx.Dim(), nil)
	return nil
}

// restorePrepared re-prepares the embedder on the corpus the current index
// was built from, undoing a Prepare that succeeded before a later failure.
func (e *Engine) restorePrepared(ctx context.Context) {
	if len(e.corpus) == 0 {
		return
	}
	if err := e.embedder.Prepare(ctx, e.corpus); err != nil {
		e.logger.ErrorContext(ctx, "restore embedder state failed", "error", err)
	}
}

// SetEmbedder switches the engine to embedder. A ready engine re-embeds
// every record first; the embedder and index are swapped together only
// when that succeeds.
func (e *Engine) SetEmbedder(ctx context.Context, embedder domain.Embedder) error {
	if embedder == nil {
		return errors.New("service: nil embedder")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateFailed:
		return ErrFailed
	case StateUninitialized:
		e.embedder = embedder
		return nil
	}
	texts := e.store.Texts()
	idx, err := e.buildIndex(ctx, embedder, texts)
	if err != nil {
		e.logger.LogBuild(ctx, len(texts), 0, err)
		return err
	}
	e.embedder = embedder
	e.index = idx
	e.corpus = texts
	e.logger.InfoContext(ctx, "embedder changed", "model", embedder.Name())
	e.logger.LogBuild(ctx, idx.Len(), idx.Dim(), nil)
	return nil
}

// Records returns a copy of the stored records in position order.
func (e *Engine) Records() []domain.Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Records()
}

// SaveRecords writes the stored records to path as JSON.
func (e *Engine) SaveRecords(path string) error {
	return menu.Save(path, e.Records())
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// ID returns the engine identifier used in logs.
func (e *Engine) ID() string { return e.id }

// Stats returns a snapshot of the engine.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var model string
	if e.embedder != nil {
		model = e.embedder.Name()
	}
	return Stats{
		ID:         e.id,
		State:      e.state,
		TotalItems: e.store.Len(),
		Model:      model,
		Dimension:  e.index.Dim(),
		IndexSize:  e.index.Len(),
	}
}
