package clinical

import (
	"errors"
	"testing"
	"time"

	"github.com/ehr/interchange/internal/platform/hl7v2"
	"github.com/ehr/interchange/internal/platform/segment"
)

const sampleORU = "MSH|^~\\&|LabSys|LabFac|EHR|EHRFac|20240115120000||ORU^R01|MSG00001|P|2.5\n" +
	"PID|1||123456^^^Hosp^MR||Doe^John||19800101|M\n" +
	"OBR|1|ORD123|FIL456|CBC^Complete Blood Count\n" +
	"OBX|1|NM|TestX||12|mg/dL|10-20\n" +
	"OBX|2|NM|HGB^Hemoglobin||13.5|g/dL|13.0-17.0|N\n"

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser()
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	return p
}

func msg(text string) segment.Message {
	return segment.Message{Source: "test", Text: text}
}

func TestParse_Observation(t *testing.T) {
	res, err := newTestParser(t).Parse(msg(sampleORU))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(res.Observations))
	}
	want := ObservationRecord{TestName: "TestX", Result: "12", Units: "mg/dL", ReferenceRange: "10-20"}
	if res.Observations[0] != want {
		t.Errorf("expected %+v, got %+v", want, res.Observations[0])
	}
}

func TestParse_Records(t *testing.T) {
	res, err := newTestParser(t).Parse(msg(sampleORU))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(res.Records))
	}
	h, ok := res.Header()
	if !ok || h != (HeaderRecord{MessageType: "ORU^R01", Sender: "LabSys", Receiver: "EHR"}) {
		t.Errorf("unexpected header: %+v", h)
	}
	p, ok := res.Patient()
	if !ok || p != (PatientRecord{Name: "Doe John", DOB: "19800101", Gender: "M"}) {
		t.Errorf("unexpected patient: %+v", p)
	}
	if o := res.Records[2].(OrderRecord); o.OrderNumber != "FIL456" || o.TestName != "CBC^Complete Blood Count" {
		t.Errorf("unexpected order: %+v", o)
	}
	if res.Message.ControlID() != "MSG00001" {
		t.Errorf("expected control id MSG00001, got %q", res.Message.ControlID())
	}
}

func TestParse_MissingOBR(t *testing.T) {
	text := "MSH|^~\\&|LabSys|LabFac|EHR|EHRFac|20240115120000||ORU^R01|MSG00001|P|2.5\n" +
		"PID|1||123456||Doe^John||19800101|M\n" +
		"OBX|1|NM|TestX||12|mg/dL|10-20\n"

	res, err := newTestParser(t).Parse(msg(text))
	if res != nil {
		t.Error("expected no result")
	}
	var vfe *segment.ValidationFailedError
	if !errors.As(err, &vfe) {
		t.Fatalf("expected *ValidationFailedError, got %v", err)
	}
	if len(vfe.Errors) != 1 || vfe.Errors[0].Kind != segment.MissingSegment || vfe.Errors[0].Tag != "OBR" {
		t.Errorf("expected MissingSegment(OBR), got %+v", vfe.Errors)
	}
}

func TestParse_Empty(t *testing.T) {
	for _, text := range []string{"", " \n\r\n"} {
		res, err := newTestParser(t).Parse(msg(text))
		if !errors.Is(err, hl7v2.ErrNoSegments) {
			t.Errorf("Parse(%q): expected ErrNoSegments, got %v", text, err)
		}
		if res != nil {
			t.Errorf("Parse(%q): expected no result", text)
		}
	}
}

func TestParse_ShortSegmentBecomesDiagnostic(t *testing.T) {
	// PID passes validation with 8 fields but gender sits at index 8.
	text := "MSH|^~\\&|LabSys|LabFac|EHR|EHRFac|20240115120000||ORU^R01|MSG00001|P|2.5\n" +
		"PID|1||123456||Doe^John||19800101\n" +
		"OBR|1|ORD123|FIL456|CBC\n" +
		"OBX|1|NM|TestX||12\n" +
		"OBX|2|NM|TestY||7|mmol/L|3-9\n"

	res, err := newTestParser(t).Parse(msg(text))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Diagnostics) != 2 {
		t.Fatalf("expected 2 diagnostics, got %+v", res.Diagnostics)
	}
	if res.Diagnostics[0].Tag != "PID" || res.Diagnostics[1].Tag != "OBX" {
		t.Errorf("unexpected diagnostics: %+v", res.Diagnostics)
	}
	if len(res.Observations) != 1 || res.Observations[0].TestName != "TestY" {
		t.Errorf("expected the complete OBX to be extracted, got %+v", res.Observations)
	}
}

func TestResult_Stored(t *testing.T) {
	res, err := newTestParser(t).Parse(msg(sampleORU))
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	m := res.Stored(now)
	if m.MessageType != "ORU^R01" || m.ControlID != "MSG00001" || m.Sender != "LabSys" ||
		m.Receiver != "EHR" || m.PatientName != "Doe John" || !m.ReceivedAt.Equal(now) {
		t.Errorf("unexpected stored message: %+v", m)
	}
	if len(m.Observations) != 2 {
		t.Errorf("expected 2 observations, got %d", len(m.Observations))
	}
	if want := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC); !m.MessageTime.Equal(want) {
		t.Errorf("expected message time %v, got %v", want, m.MessageTime)
	}
}

func TestResult_StoredWithoutTimestamp(t *testing.T) {
	text := "MSH|^~\\&|LabSys|LabFac|EHR|EHRFac|||ORU^R01|MSG00001|P|2.5\n" +
		"PID|1||123456||Doe^John||19800101|M\n" +
		"OBR|1|ORD123|FIL456|CBC\n" +
		"OBX|1|NM|TestX||12|mg/dL|10-20\n"
	res, err := newTestParser(t).Parse(msg(text))
	if err != nil {
		t.Fatal(err)
	}
	if m := res.Stored(time.Now()); !m.MessageTime.IsZero() {
		t.Errorf("expected zero message time, got %v", m.MessageTime)
	}
}
