package clinical

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/ehr/interchange/internal/platform/hl7v2"
	"github.com/ehr/interchange/internal/platform/segment"
)

//go:embed schema.yaml
var schemaYAML []byte

var builders = map[string]segment.Builder{
	KindHeader: func(v segment.Values) segment.Record {
		return HeaderRecord{MessageType: v["type"], Sender: v["sender"], Receiver: v["receiver"]}
	},
	KindPatient: func(v segment.Values) segment.Record {
		return PatientRecord{Name: v["name"], DOB: v["dob"], Gender: v["gender"]}
	},
	KindOrder: func(v segment.Values) segment.Record {
		return OrderRecord{OrderNumber: v["order"], TestName: v["test"]}
	},
	KindObservation: func(v segment.Values) segment.Record {
		return ObservationRecord{TestName: v["test"], Result: v["result"], Units: v["units"], ReferenceRange: v["range"]}
	},
}

// Result is everything extracted from one valid clinical message.
type Result struct {
	Message      *hl7v2.Message
	Records      []segment.Record // header, patient and order records in segment order
	Observations []ObservationRecord
	Diagnostics  []segment.Diagnostic
}

// Parser validates and extracts clinical messages.
type Parser struct {
	extractor *segment.Extractor
	validator segment.Validator
}

func NewParser() (*Parser, error) {
	s, err := segment.LoadSchema(schemaYAML)
	if err != nil {
		return nil, fmt.Errorf("clinical schema: %w", err)
	}
	x, err := segment.NewExtractor(s, builders)
	if err != nil {
		return nil, fmt.Errorf("clinical schema: %w", err)
	}
	return &Parser{extractor: x, validator: hl7v2.DefaultValidator()}, nil
}

// Parse validates msg and, when it is structurally sound, extracts its
// records. A whitespace-only payload yields hl7v2.ErrNoSegments. Validation
// problems are returned together as a *segment.ValidationFailedError and
// nothing is extracted.
func (p *Parser) Parse(msg segment.Message) (*Result, error) {
	m, err := hl7v2.Parse(msg)
	if err != nil {
		return nil, err
	}
	if err := p.validator.Check(msg.Source, m.Segments); err != nil {
		return nil, err
	}

	ext, diags := p.extractor.ExtractAll(m.Segments)
	res := &Result{
		Message:      m,
		Records:      []segment.Record{},
		Observations: []ObservationRecord{},
		Diagnostics:  diags,
	}
	for _, e := range ext {
		switch r := e.Record.(type) {
		case nil:
		case ObservationRecord:
			res.Observations = append(res.Observations, r)
		default:
			res.Records = append(res.Records, r)
		}
	}
	return res, nil
}

// Header returns the first header record, if any.
func (r *Result) Header() (HeaderRecord, bool) {
	for _, rec := range r.Records {
		if h, ok := rec.(HeaderRecord); ok {
			return h, true
		}
	}
	return HeaderRecord{}, false
}

// Patient returns the first patient record, if any.
func (r *Result) Patient() (PatientRecord, bool) {
	for _, rec := range r.Records {
		if p, ok := rec.(PatientRecord); ok {
			return p, true
		}
	}
	return PatientRecord{}, false
}

// Stored converts the result into its persisted form.
func (r *Result) Stored(received time.Time) *StoredMessage {
	h, _ := r.Header()
	p, _ := r.Patient()
	return &StoredMessage{
		Source:       r.Message.Source,
		MessageType:  h.MessageType,
		ControlID:    r.Message.ControlID(),
		MessageTime:  r.Message.Timestamp(),
		Sender:       h.Sender,
		Receiver:     h.Receiver,
		PatientName:  p.Name,
		ReceivedAt:   received,
		Observations: r.Observations,
	}
}
