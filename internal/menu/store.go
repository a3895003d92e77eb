package menu

import (
	"context"
	"strings"
	"sync"

	"menurag/internal/domain"
	"menurag/internal/logging"
)

// Validate reports whether the record has a non-blank name and description.
func Validate(r domain.Record) bool {
	return Check(r) == nil
}

// Check is Validate with the reason attached.
func Check(r domain.Record) error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return &ValidationError{Field: "name"}
	}
	if strings.TrimSpace(r.Description) == "" {
		return &ValidationError{Field: "description", Name: name}
	}
	return nil
}

// Store holds validated records in insertion order. A record's position is
// its identity and never changes once assigned.
type Store struct {
	mu      sync.RWMutex
	records []domain.Record
}

// NewStore creates an empty store.
func NewStore() *Store { return &Store{} }

// Add validates the record and appends it.
func (s *Store) Add(r domain.Record) (domain.Record, error) {
	if err := Check(r); err != nil {
		return domain.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return r, nil
}

// AddAll adds every valid record and logs the rest. It returns the number
// of records added.
func (s *Store) AddAll(ctx context.Context, records []domain.Record, logger *logging.Logger) int {
	added := 0
	for _, r := range records {
		if _, err := s.Add(r); err != nil {
			if logger != nil {
				logger.LogDropped(ctx, "invalid record", err)
			}
			continue
		}
		added++
	}
	return added
}

// At returns the record at position i.
func (s *Store) At(i int) (domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.records) {
		return domain.Record{}, false
	}
	return s.records[i], true
}

// Records returns a copy of all records in insertion order.
func (s *Store) Records() []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Texts returns the embedding text of every record in insertion order.
func (s *Store) Texts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.Text()
	}
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Truncate drops every record at position n and beyond.
func (s *Store) Truncate(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n < len(s.records) {
		s.records = s.records[:n:n]
	}
}
