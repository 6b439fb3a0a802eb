package services

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput means no partition of the run carried any listing. The run
	// aborts before anything is written so history is never wiped.
	ErrEmptyInput = errors.New("no listings in any partition")

	// ErrCorruptHistory means the historical sheet exists but lacks the
	// structure needed to match listings against it.
	ErrCorruptHistory = errors.New("historical table is corrupt")
)

// RecordProcessingError describes a single row that could not be processed.
// These are counted and skipped; they never abort a run.
type RecordProcessingError struct {
	Stage string
	ID    string
	Err   error
}

func (e *RecordProcessingError) Error() string {
	return fmt.Sprintf("%s row %q: %v", e.Stage, e.ID, e.Err)
}

func (e *RecordProcessingError) Unwrap() error { return e.Err }

// StoreWriteError wraps a failed final persistence call. The stored history
// keeps its pre-run value.
type StoreWriteError struct {
	Sheet string
	Err   error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("write sheet %q: %v", e.Sheet, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }
