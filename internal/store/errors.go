package store

import (
	"errors"
	"fmt"

	"github.com/jjenkins/laborwatch/internal/model"
)

// ErrHasLinkedLocations blocks jurisdiction deletion while any location still
// references it. The caller must unlink first; this is never retried.
var ErrHasLinkedLocations = errors.New("jurisdiction has linked locations")

// ValidationError reports malformed input to a create/update operation. It is
// surfaced to the caller verbatim and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// CyclicParentError reports a parent assignment that would make a
// jurisdiction its own ancestor
type CyclicParentError struct {
	JurisdictionID int
	ParentID       int
}

func (e *CyclicParentError) Error() string {
	return fmt.Sprintf("parent %d would make jurisdiction %d its own ancestor", e.ParentID, e.JurisdictionID)
}

// DuplicateFactError reports ambiguous records for one
// (jurisdiction, category, title) key. This is a data-quality defect signal,
// never silently merged.
type DuplicateFactError struct {
	JurisdictionID int
	Category       string
	Title          string
}

func (e *DuplicateFactError) Error() string {
	return fmt.Sprintf("duplicate records for jurisdiction %d category %q title %q", e.JurisdictionID, e.Category, e.Title)
}

// InvalidStatusTransitionError reports a legislation status move that is not
// allowed by the forward-only lifecycle
type InvalidStatusTransitionError struct {
	From model.LegislationStatus
	To   model.LegislationStatus
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("invalid legislation status transition: %s -> %s", e.From, e.To)
}
