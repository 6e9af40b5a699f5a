package hl7v2

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ehr/interchange/internal/platform/segment"
)

// ErrNoSegments is returned when a payload holds nothing but whitespace.
var ErrNoSegments = errors.New("hl7v2: no segments found")

// Message is a clinical message split into segments. Fields are split on
// "|" without HL7's MSH-1 shift, so for MSH the field at index n is MSH-(n+1)
// in standard numbering: index 8 is MSH-9 (message type).
type Message struct {
	Source   string
	Segments []segment.Segment
}

// Parse splits raw message text into HL7 segments.
func Parse(m segment.Message) (*Message, error) {
	segs := segment.HL7.Parse(m.Text)
	if len(segs) == 0 {
		return nil, ErrNoSegments
	}
	return &Message{Source: m.Source, Segments: segs}, nil
}

// GetSegment returns the first segment with the given tag, or nil if not found.
func (m *Message) GetSegment(tag string) *segment.Segment {
	for i := range m.Segments {
		if m.Segments[i].Tag() == tag {
			return &m.Segments[i]
		}
	}
	return nil
}

// Type returns MSH-9, e.g. "ORU^R01".
func (m *Message) Type() string { return m.mshField(8) }

// ControlID returns MSH-10.
func (m *Message) ControlID() string { return m.mshField(9) }

// Timestamp parses MSH-7. The zero time is returned when it is absent or
// unparseable.
func (m *Message) Timestamp() time.Time {
	ts := m.mshField(6)
	if ts == "" {
		return time.Time{}
	}
	t, err := parseHL7Timestamp(ts)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (m *Message) mshField(index int) string {
	msh := m.GetSegment("MSH")
	if msh == nil {
		return ""
	}
	v, err := msh.Field(index)
	if err != nil {
		return ""
	}
	return v
}

// parseHL7Timestamp parses an HL7v2 timestamp string (YYYYMMDDHHmmss or YYYYMMDD).
func parseHL7Timestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case len(s) >= 14:
		return time.Parse("20060102150405", s[:14])
	case len(s) >= 12:
		return time.Parse("200601021504", s[:12])
	case len(s) >= 8:
		return time.Parse("20060102", s[:8])
	default:
		return time.Time{}, fmt.Errorf("hl7v2: unrecognized timestamp format: %q", s)
	}
}
