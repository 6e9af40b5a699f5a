package segment

import (
	"fmt"
	"strings"
)

// Dialect bundles the delimiters of one interchange format.
type Dialect struct {
	Name       string
	Splitter   Splitter
	Terminator string // written back by Join
	Separator  string // between fields
}

var (
	// X12 covers the 837 claim and 835 remittance streams: segments end in
	// "~" (a following newline is trimmed away) and fields are split on "*".
	X12 = Dialect{Name: "x12", Splitter: Splitter{Terminators: "~"}, Terminator: "~", Separator: "*"}

	// HL7 covers ORU-style clinical messages: one segment per line, "|"
	// between fields. "\n", "\r\n" and a bare "\r" all end a line.
	HL7 = Dialect{Name: "hl7", Splitter: Splitter{Terminators: "\r\n"}, Terminator: "\n", Separator: "|"}
)

// LookupDialect returns the dialect registered under name.
func LookupDialect(name string) (Dialect, bool) {
	switch name {
	case X12.Name:
		return X12, true
	case HL7.Name:
		return HL7, true
	}
	return Dialect{}, false
}

// Parse splits text into segments in source order.
func (d Dialect) Parse(text string) []Segment {
	var segs []Segment
	for raw := range d.Splitter.Split(text) {
		seg, err := ParseSegment(raw, d.Separator)
		if err != nil {
			// Split never yields blank strings.
			continue
		}
		segs = append(segs, seg)
	}
	return segs
}

// Segment is one delimited record. Fields[0] is the tag.
type Segment struct {
	Raw    string
	Fields []string
}

// ParseSegment splits raw on sep. Blank input yields ErrEmptySegment.
func ParseSegment(raw, sep string) (Segment, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Segment{}, ErrEmptySegment
	}
	return Segment{Raw: raw, Fields: strings.Split(raw, sep)}, nil
}

// Tag returns the segment identifier, e.g. "CLM" or "MSH".
func (s Segment) Tag() string {
	if len(s.Fields) == 0 {
		return ""
	}
	return s.Fields[0]
}

// Len returns the number of fields including the tag.
func (s Segment) Len() int { return len(s.Fields) }

// Field returns the field at index i, failing with a *FieldIndexError when
// the segment is too short.
func (s Segment) Field(i int) (string, error) {
	if i < 0 || i >= len(s.Fields) {
		return "", &FieldIndexError{Tag: s.Tag(), Index: i, Component: -1, Have: len(s.Fields)}
	}
	return s.Fields[i], nil
}

func (s Segment) String() string {
	if s.Raw != "" {
		return s.Raw
	}
	return fmt.Sprint(s.Fields)
}
