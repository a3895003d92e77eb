package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned by query and mutation operations before a
	// successful Initialize.
	ErrNotReady = errors.New("service: engine not initialized")
	// ErrFailed is returned by every operation once initialization failed.
	ErrFailed = errors.New("service: engine initialization failed")
)

// EmbeddingError wraps a failure of the embedding provider.
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("service: %s: embedding failed: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// InitializationError reports why Initialize could not produce a ready
// engine. Err is nil when no record survived validation.
type InitializationError struct {
	Reason string
	Err    error
}

func (e *InitializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service: initialize: %s: %v", e.Reason, e.Err)
	}
	return "service: initialize: " + e.Reason
}

func (e *InitializationError) Unwrap() error { return e.Err }
