package records

import (
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/common"
)

// ValidationError reports the first offending field of a batch. It matches
// common.ErrValidation with errors.Is.
type ValidationError struct {
	// Index is the position of the record in its batch, -1 outside a batch.
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("record %d: %s %s", e.Index, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return common.ErrValidation }

func fieldError(field, reason string) error {
	return &ValidationError{Index: -1, Field: field, Reason: reason}
}

func atIndex(err error, i int) error {
	if ve, ok := err.(*ValidationError); ok {
		c := *ve
		c.Index = i
		return &c
	}
	return &ValidationError{Index: i, Field: "record", Reason: err.Error()}
}
