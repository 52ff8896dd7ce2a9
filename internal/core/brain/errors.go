package brain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyStore is returned by RandomTriple when the store holds no entries.
	ErrEmptyStore = errors.New("brain is empty")

	// ErrMalformedData marks persisted state that could not be parsed. Loading
	// fails as a whole rather than skipping the damaged part.
	ErrMalformedData = errors.New("malformed brain data")

	// ErrPersistence wraps failures to write, rename or commit persisted state.
	ErrPersistence = errors.New("brain persistence failed")

	ErrClosed     = errors.New("brain is closed")
	ErrInvalidAdd = errors.New("add amount must be positive")
	ErrNotEmpty   = errors.New("destination brain is not empty")
)

// MalformedDataError describes where persisted data stopped making sense.
// It matches ErrMalformedData with errors.Is.
type MalformedDataError struct {
	Source string
	Line   int
	Reason string
}

func (e *MalformedDataError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s line %d: %s", ErrMalformedData, e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrMalformedData, e.Source, e.Reason)
}

func (e *MalformedDataError) Unwrap() error {
	return ErrMalformedData
}

// PersistenceError wraps the cause of a failed save.
func PersistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
