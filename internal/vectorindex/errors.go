package vectorindex

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyIndex is returned when a build is attempted with zero vectors.
	ErrEmptyIndex = errors.New("vectorindex: cannot build from zero vectors")
)

// ErrDimensionMismatch indicates a vector whose length disagrees with the
// index dimension. Position is the offending vector's position within the
// call, or -1 for appends and queries.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	Position int
}

func (e *ErrDimensionMismatch) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("vectorindex: dimension mismatch at %d: expected %d, got %d", e.Position, e.Expected, e.Actual)
	}
	return fmt.Sprintf("vectorindex: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}
