package core

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the engine's failure taxonomy. Callers classify with
// errors.Is.
var (
	// ErrInvalidInput marks a request that could never succeed: bad month,
	// unknown enum value, out-of-range allocation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks a missing entity.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a uniqueness or consistency violation: duplicate
	// line item, over-allocated account.
	ErrConflict = errors.New("conflict")

	// ErrCollaborator marks a failure in an external collaborator (the
	// categorization model). Work completed before the collaborator was
	// consulted is kept.
	ErrCollaborator = errors.New("collaborator failure")
)

// InsufficientDataError reports that a snapshot range had too few distinct
// days to produce a trustworthy series. It carries the observed coverage and
// the actual date bounds so clients can suggest a narrower range.
type InsufficientDataError struct {
	CoveragePct float64
	MinDate     time.Time
	MaxDate     time.Time
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: only %.1f%% coverage", e.CoveragePct)
}
