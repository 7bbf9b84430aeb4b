package series

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned when a batch operation stops because the
	// context was cancelled or the progress sink asked to stop. Nothing was
	// written.
	ErrCancelled = errors.New("series: operation cancelled")

	// ErrObjectNotFound is returned when no section holds the named object.
	ErrObjectNotFound = errors.New("series: object not found")

	// ErrZtraceNotFound is returned for an unknown ztrace name.
	ErrZtraceNotFound = errors.New("series: ztrace not found")

	// ErrSectionMismatch is returned when two series must have the same
	// section numbers and do not.
	ErrSectionMismatch = errors.New("series: section numbers do not match")

	// ErrAlignmentExists is returned by imports that would replace an
	// alignment without permission.
	ErrAlignmentExists = errors.New("series: alignment already exists")

	// ErrNoSection marks a section number that is not part of the series.
	ErrNoSection = errors.New("section is not in the series")
)

// SectionError ties a failure to a section number.
type SectionError struct {
	N   int
	Err error
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("series: section %d: %v", e.N, e.Err)
}

func (e *SectionError) Unwrap() error { return e.Err }
