// Package errors defines the tagged error type shared by the filter and
// memory layers. Hooks never let these escape; the tags exist so callers
// and tests can distinguish why the pipeline degraded to a pass-through.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind categorizes a filter failure
type Kind string

const (
	// KindDependency marks a missing backend dependency. Sticky: the
	// pipeline stays inert for the process lifetime.
	KindDependency Kind = "dependency"

	// KindConstruction marks a failed client construction (bad config,
	// unreachable store). Also sticky.
	KindConstruction Kind = "construction"

	// KindStore marks a per-call store failure. Logged and surfaced as a
	// status event, never retried.
	KindStore Kind = "store"
)

// FilterError wraps an underlying error with its failure category
type FilterError struct {
	Kind Kind
	Op   string
	Err  error
}

// New wraps err with a kind and the operation that produced it
func New(kind Kind, op string, err error) *FilterError {
	return &FilterError{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
}

func (e *FilterError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *FilterError) Unwrap() error {
	return e.Err
}

// KindOf reports the category of err, or "" when err carries no tag
func KindOf(err error) Kind {
	var fe *FilterError
	if stderrors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
