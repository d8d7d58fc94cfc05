package collection

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation failed")
	ErrPartialFailure = errors.New("partial failure")
)

// NotFoundError reports a referenced entity id that does not exist.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError reports a malformed id, an empty required field or a
// dangling counterpart reference.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Rejection is one record an import could not apply.
type Rejection struct {
	Record string `json:"record"`
	ID     uint   `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// PartialFailure reports a multi-step operation that stopped after some of
// its steps were applied, or an import that skipped some records.
type PartialFailure struct {
	Op        string
	OpID      string
	EntityID  string
	Step      string
	Completed []string
	Remaining []string
	// RolledBack is true when the completed steps were undone by the
	// enclosing transaction.
	RolledBack bool
	Rejected   []Rejection
	Err        error
}

func (e *PartialFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Op, e.EntityID)
	if e.Step != "" {
		total := len(e.Completed) + len(e.Remaining)
		if e.Step != StepCommit {
			total++
		}
		fmt.Fprintf(&b, ": step %q failed after %d of %d steps", e.Step, len(e.Completed), total)
		if e.RolledBack {
			b.WriteString(" (rolled back)")
		}
	}
	if len(e.Rejected) > 0 {
		fmt.Fprintf(&b, ": %d records rejected", len(e.Rejected))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *PartialFailure) Is(target error) bool {
	return target == ErrPartialFailure
}

func (e *PartialFailure) Unwrap() error {
	return e.Err
}
