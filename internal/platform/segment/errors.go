package segment

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrInputNotFound    = errors.New("input not found")
	ErrEmptySegment     = errors.New("empty segment")
	ErrMalformedSegment = errors.New("malformed segment")
	ErrValidationFailed = errors.New("validation failed")
)

// FieldIndexError reports a required field (or component of a field) that is
// beyond what the segment actually carries.
type FieldIndexError struct {
	Tag       string
	Field     string // schema name of the field, empty when raised by Segment.Field
	Index     int
	Component int // -1 when the whole field was requested
	Have      int // number of fields (or components) present
}

func (e *FieldIndexError) Error() string {
	name := e.Field
	if name == "" {
		name = fmt.Sprintf("field %d", e.Index)
	}
	if e.Component >= 0 {
		return fmt.Sprintf("%s segment: %s needs component %d of field %d, have %d component(s)",
			e.Tag, name, e.Component, e.Index, e.Have)
	}
	return fmt.Sprintf("%s segment: %s needs field index %d, have %d field(s)",
		e.Tag, name, e.Index, e.Have)
}

func (e *FieldIndexError) Unwrap() error { return ErrMalformedSegment }

// ValidationFailedError aggregates every structural problem found in one
// message. Extraction must not proceed when this is returned.
type ValidationFailedError struct {
	Source string
	Errors []ValidationError
}

func (e *ValidationFailedError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Message
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Source, strings.Join(msgs, "; "))
}

func (e *ValidationFailedError) Unwrap() error { return ErrValidationFailed }
