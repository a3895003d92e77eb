package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"menurag/internal/domain"
	"menurag/internal/logging"
)

const schemaVersion = "1"

// Embedder wraps another embedder and persists its vectors in SQLite,
// keyed by model and text hash. Only texts missing from the cache reach
// the wrapped embedder.
type Embedder struct {
	inner  domain.Embedder
	db     *sql.DB
	dbPath string
	logger *logging.Logger

	mu        sync.Mutex
	dimension int

	hits   atomic.Int64
	misses atomic.Int64
}

// Open creates or opens the cache database at dbPath around inner.
func Open(inner domain.Embedder, dbPath string, logger *logging.Logger) (*Embedder, error) {
	if logger == nil {
		logger = logging.Noop()
	}
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	e := &Embedder{inner: inner, db: db, dbPath: dbPath, logger: logger}
	if err := e.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if v, err := e.getMetadata("version"); err == nil && v != schemaVersion {
		if _, err := db.Exec(`DELETE FROM embeddings`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to reset cache: %w", err)
		}
	}
	if err := e.setMetadata("version", schemaVersion); err != nil {
		db.Close()
		return nil, err
	}
	return e, nil
}

func (e *Embedder) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS embeddings (
		model TEXT NOT NULL,
		text_hash TEXT NOT NULL,
		dims INTEGER NOT NULL,
		vector BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (model, text_hash)
	);
	`
	_, err := e.db.Exec(schema)
	return err
}

// Name returns the wrapped embedder's name.
func (e *Embedder) Name() string { return e.inner.Name() }

// Prepare delegates to the wrapped embedder.
func (e *Embedder) Prepare(ctx context.Context, corpus []string) error {
	return e.inner.Prepare(ctx, corpus)
}

// Dimension returns the wrapped embedder's dimension, or the dimension of
// the last vectors served from the cache when the wrapped one does not know
// it yet.
func (e *Embedder) Dimension() int {
	if d := e.inner.Dimension(); d > 0 {
		return d
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

// Fingerprint forwards the wrapped embedder's fingerprint, if any.
func (e *Embedder) Fingerprint() string {
	if fp, ok := e.inner.(domain.Fingerprinter); ok {
		return fp.Fingerprint()
	}
	return ""
}

// Embed serves cached vectors and embeds the rest through the wrapped
// embedder, storing the new vectors before returning.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	model := e.modelKey()
	out := make([][]float32, len(texts))
	hashes := make([]string, len(texts))

	// Dedupe misses so each distinct text is embedded once.
	missIdx := map[string][]int{}
	var missTexts []string
	for i, text := range texts {
		hashes[i] = hashText(text)
		v, ok, err := e.lookup(ctx, model, hashes[i])
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = v
			continue
		}
		if _, seen := missIdx[hashes[i]]; !seen {
			missTexts = append(missTexts, text)
		}
		missIdx[hashes[i]] = append(missIdx[hashes[i]], i)
	}
	e.hits.Add(int64(len(texts) - countIndices(missIdx)))
	e.misses.Add(int64(len(missTexts)))

	if len(missTexts) > 0 {
		vecs, err := e.inner.Embed(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(missTexts) {
			return nil, fmt.Errorf("cache: embedder returned %d vectors for %d texts", len(vecs), len(missTexts))
		}
		// The fingerprint may only be known after the call.
		model = e.modelKey()
		if err := e.store(ctx, model, missTexts, vecs); err != nil {
			e.logger.WarnContext(ctx, "embedding cache write failed", "path", e.dbPath, "error", err)
		}
		for j, text := range missTexts {
			for _, i := range missIdx[hashText(text)] {
				out[i] = vecs[j]
			}
		}
	}

	if len(out) > 0 {
		e.mu.Lock()
		e.dimension = len(out[0])
		e.mu.Unlock()
	}
	e.logger.DebugContext(ctx, "embedding cache",
		"texts", len(texts),
		"misses", len(missTexts),
	)
	return out, nil
}

// Stats returns the number of cache hits and misses since Open.
func (e *Embedder) Stats() (hits, misses int64) {
	return e.hits.Load(), e.misses.Load()
}

// Count returns the number of stored vectors.
func (e *Embedder) Count() int {
	var count int
	if err := e.db.QueryRow(`SELECT COUNT(*) FROM embeddings`).Scan(&count); err != nil {
		return 0
	}
	return count
}

// Close closes the database connection
func (e *Embedder) Close() error {
	return e.db.Close()
}

func (e *Embedder) modelKey() string {
	if fp := e.Fingerprint(); fp != "" {
		return e.inner.Name() + "@" + fp
	}
	return e.inner.Name()
}

func (e *Embedder) lookup(ctx context.Context, model, hash string) ([]float32, bool, error) {
	var dims int
	var blob []byte
	err := e.db.QueryRowContext(ctx,
		`SELECT dims, vector FROM embeddings WHERE model = ? AND text_hash = ?`,
		model, hash,
	).Scan(&dims, &blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}
	v := decodeVector(blob)
	if len(v) != dims {
		// Corrupt row; treat as a miss and let the write overwrite it.
		return nil, false, nil
	}
	return v, true, nil
}

func (e *Embedder) store(ctx context.Context, model string, texts []string, vecs [][]float32) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO embeddings (model, text_hash, dims, vector, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	now := time.Now().Unix()
	for i, text := range texts {
		if _, err := stmt.ExecContext(ctx, model, hashText(text), len(vecs[i]), encodeVector(vecs[i]), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (e *Embedder) getMetadata(key string) (string, error) {
	var value string
	err := e.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("metadata key not found: %s", key)
	}
	return value, err
}

func (e *Embedder) setMetadata(key, value string) error {
	_, err := e.db.Exec(`
		INSERT OR REPLACE INTO metadata (key, value)
		VALUES (?, ?)
	`, key, value)
	return err
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func countIndices(m map[string][]int) int {
	n := 0
	for _, idx := range m {
		n += len(idx)
	}
	return n
}

// encodeVector encodes a float32 slice as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, v)
	return buf.Bytes()
}

// decodeVector decodes little-endian bytes to a float32 slice.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	_ = binary.Read(bytes.NewReader(b), binary.LittleEndian, &v)
	return v
}
