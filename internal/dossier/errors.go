package dossier

import (
	"errors"
	"fmt"
)

// ErrNoSubjects is returned when a build is started without any targets.
var ErrNoSubjects = errors.New("no subjects to build")

// NotFoundError reports that a source has no page for the title.
type NotFoundError struct {
	Source string
	Title  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: page not found: %q", e.Source, e.Title)
}

// ExtractionMismatch reports that a page was fetched but did not have the
// expected structure.
type ExtractionMismatch struct {
	Source string
	Reason string
}

func (e *ExtractionMismatch) Error() string {
	return fmt.Sprintf("%s: unexpected page structure: %s", e.Source, e.Reason)
}

// PersistenceConflict reports that a metadata snapshot could not be read or
// written. The prior snapshot is left untouched.
type PersistenceConflict struct {
	Path  string
	Cause error
}

func (e *PersistenceConflict) Error() string {
	return fmt.Sprintf("metadata store %s: %v", e.Path, e.Cause)
}

func (e *PersistenceConflict) Unwrap() error {
	return e.Cause
}

// ResolutionError reports that a subject could not be turned into a profile.
type ResolutionError struct {
	Subject string
	Cause   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Subject, e.Cause)
}

func (e *ResolutionError) Unwrap() error {
	return e.Cause
}
