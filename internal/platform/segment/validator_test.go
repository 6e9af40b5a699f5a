package segment

import (
	"errors"
	"reflect"
	"testing"
)

func testValidator() Validator {
	return Validator{
		Required: []string{"MSH", "PID", "OBR", "OBX"},
		MinFields: []FieldCountRule{
			{Tag: "MSH", Name: "header", Min: 12},
			{Tag: "PID", Name: "patient", Min: 8},
		},
	}
}

const validORU = "MSH|^~\\&|Lab|LabFac|EHR|EHRFac|20240115||ORU^R01|MSG1|P|2.5\n" +
	"PID|1||123||Doe^John||19800101|M\n" +
	"OBR|1||ORD1|CBC\n" +
	"OBX|1|NM|TestX||12|mg/dL|10-20\n"

func TestValidate_Valid(t *testing.T) {
	if errs := testValidator().Validate(HL7.Parse(validORU)); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidate_MissingSegment(t *testing.T) {
	text := "MSH|^~\\&|Lab|LabFac|EHR|EHRFac|20240115||ORU^R01|MSG1|P|2.5\n" +
		"PID|1||123||Doe^John||19800101|M\n" +
		"OBX|1|NM|TestX||12|mg/dL|10-20\n"

	errs := testValidator().Validate(HL7.Parse(text))
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
	if errs[0].Kind != MissingSegment || errs[0].Tag != "OBR" {
		t.Errorf("expected MissingSegment(OBR), got %+v", errs[0])
	}
}

func TestValidate_ShortSegments(t *testing.T) {
	text := "MSH|^~\\&|Lab\nPID|1\nOBR|1\nOBX|1\n"

	errs := testValidator().Validate(HL7.Parse(text))
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	if errs[0].Kind != MalformedSegment || errs[0].Segment != "header" {
		t.Errorf("expected MalformedSegment(header), got %+v", errs[0])
	}
	if errs[1].Kind != MalformedSegment || errs[1].Segment != "patient" {
		t.Errorf("expected MalformedSegment(patient), got %+v", errs[1])
	}
}

func TestValidate_TagPrefix(t *testing.T) {
	// A segment starting with the required tag satisfies it.
	text := "MSH|^~\\&|Lab|LabFac|EHR|EHRFac|20240115||ORU^R01|MSG1|P|2.5\n" +
		"PID|1||123||Doe^John||19800101|M\n" +
		"OBR|1||ORD1|CBC\n" +
		"OBXX|1\n"

	if errs := testValidator().Validate(HL7.Parse(text)); len(errs) != 0 {
		t.Errorf("expected OBXX to satisfy OBX, got %v", errs)
	}

	missing := "MSH|^~\\&|Lab|LabFac|EHR|EHRFac|20240115||ORU^R01|MSG1|P|2.5\n" +
		"PID|1||123||Doe^John||19800101|M\n" +
		"OBR|1||ORD1|CBC\n" +
		"OB|1\n"
	errs := testValidator().Validate(HL7.Parse(missing))
	if len(errs) != 1 || errs[0].Tag != "OBX" {
		t.Errorf("expected MissingSegment(OBX), got %v", errs)
	}
}

func TestValidate_Idempotent(t *testing.T) {
	inputs := []string{validORU, "", "PID|1\n", "MSH|x\nMSH|y\n"}
	v := testValidator()
	for _, in := range inputs {
		segs := HL7.Parse(in)
		first := v.Validate(segs)
		second := v.Validate(segs)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("Validate not idempotent for %q: %v vs %v", in, first, second)
		}
	}
}

func TestCheck(t *testing.T) {
	err := testValidator().Check("lab.hl7", HL7.Parse("PID|1\n"))

	var vfe *ValidationFailedError
	if !errors.As(err, &vfe) {
		t.Fatalf("expected *ValidationFailedError, got %v", err)
	}
	if vfe.Source != "lab.hl7" {
		t.Errorf("expected source lab.hl7, got %q", vfe.Source)
	}
	if !errors.Is(err, ErrValidationFailed) {
		t.Error("expected error to match ErrValidationFailed")
	}
	if err := testValidator().Check("ok", HL7.Parse(validORU)); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
