package segment

import (
	"fmt"
	"slices"
	"strings"
)

// Kind classifies validation errors and extraction diagnostics.
type Kind string

const (
	MissingSegment   Kind = "MissingSegment"
	MalformedSegment Kind = "MalformedSegment"
	DuplicateKey     Kind = "DuplicateKey"
)

// ValidationError is one structural problem in a message.
type ValidationError struct {
	Kind    Kind   `json:"kind"`
	Tag     string `json:"tag"`
	Segment string `json:"segment,omitempty"` // rule name for MalformedSegment, e.g. "header"
	Message string `json:"message"`
}

func (e ValidationError) Error() string { return e.Message }

// FieldCountRule requires every segment starting with Tag to carry at least
// Min fields (tag included).
type FieldCountRule struct {
	Tag  string
	Name string
	Min  int
}

// Validator checks segment presence and minimum field counts. Segments are
// matched to a tag by prefix, so "OBXX|1" satisfies a required "OBX".
type Validator struct {
	Required  []string
	MinFields []FieldCountRule
}

// Validate returns every problem found. It does not modify segs and returns
// the same list for the same input.
func (v Validator) Validate(segs []Segment) []ValidationError {
	var errs []ValidationError

	for _, tag := range v.Required {
		if !slices.ContainsFunc(segs, func(s Segment) bool { return startsWith(s, tag) }) {
			errs = append(errs, ValidationError{
				Kind:    MissingSegment,
				Tag:     tag,
				Message: fmt.Sprintf("missing required segment: %s", tag),
			})
		}
	}

	for _, s := range segs {
		for _, rule := range v.MinFields {
			if !startsWith(s, rule.Tag) || s.Len() >= rule.Min {
				continue
			}
			errs = append(errs, ValidationError{
				Kind:    MalformedSegment,
				Tag:     rule.Tag,
				Segment: rule.Name,
				Message: fmt.Sprintf("invalid %s segment: missing required fields (have %d, need %d)",
					rule.Tag, s.Len(), rule.Min),
			})
		}
	}

	return errs
}

func startsWith(s Segment, tag string) bool {
	if s.Raw == "" {
		return strings.HasPrefix(s.Tag(), tag)
	}
	return strings.HasPrefix(s.Raw, tag)
}

// Check validates segs and wraps any problems in a *ValidationFailedError.
func (v Validator) Check(source string, segs []Segment) error {
	if errs := v.Validate(segs); len(errs) > 0 {
		return &ValidationFailedError{Source: source, Errors: errs}
	}
	return nil
}

// Diagnostic is a non-fatal problem recorded while extracting.
type Diagnostic struct {
	Kind     Kind   `json:"kind"`
	Position int    `json:"position"` // zero-based segment index in the message
	Tag      string `json:"tag"`
	Message  string `json:"message"`
}
