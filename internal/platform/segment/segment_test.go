package segment

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
)

// =========== Splitter Tests ===========

func TestSplit_X12(t *testing.T) {
	text := "ISA*00*~\nCLM*1001*500.00~\n  ~\nNM1*IL*1*Doe*John~"
	got := slices.Collect(X12.Splitter.Split(text))
	want := []string{"ISA*00*", "CLM*1001*500.00", "NM1*IL*1*Doe*John"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSplit_HL7LineEndings(t *testing.T) {
	text := "MSH|a\r\nPID|b\rOBR|c\n\nOBX|d\n"
	got := slices.Collect(HL7.Splitter.Split(text))
	want := []string{"MSH|a", "PID|b", "OBR|c", "OBX|d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSplit_Restartable(t *testing.T) {
	seq := X12.Splitter.Split("A*1~B*2~C*3~")
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("second pass differs: %q vs %q", first, second)
	}
	if len(first) != 3 {
		t.Errorf("expected 3 segments, got %d", len(first))
	}
}

func TestSplit_EarlyStop(t *testing.T) {
	var seen []string
	for s := range X12.Splitter.Split("A~B~C~") {
		seen = append(seen, s)
		if s == "B" {
			break
		}
	}
	if !reflect.DeepEqual(seen, []string{"A", "B"}) {
		t.Errorf("unexpected segments %q", seen)
	}
}

func TestSplit_Empty(t *testing.T) {
	for _, text := range []string{"", "   ", "~~\n~"} {
		if got := slices.Collect(X12.Splitter.Split(text)); len(got) != 0 {
			t.Errorf("Split(%q): expected no segments, got %q", text, got)
		}
	}
}

func TestSplitJoin_RoundTrip(t *testing.T) {
	texts := []string{
		"ST*837*0001~\nCLM*1001*500.00**** *P~\nSE*3*0001~\n",
		"CLP*1001*2*500.00*400.00*100.00~CLP*1002*1*80*80*0~",
		" A*1 ~ B*2 ~",
	}
	for _, text := range texts {
		segs := slices.Collect(X12.Splitter.Split(text))
		joined := Join(segs, X12.Terminator)
		again := slices.Collect(X12.Splitter.Split(joined))
		if !reflect.DeepEqual(segs, again) {
			t.Errorf("round trip changed segments: %q vs %q", segs, again)
		}
		if stripSpace(joined) != stripSpace(text) {
			t.Errorf("joined %q is not equivalent to %q", joined, text)
		}
	}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, s)
}

func TestJoin_Empty(t *testing.T) {
	if got := Join(nil, "~"); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

// =========== Segment Tests ===========

func TestParseSegment(t *testing.T) {
	seg, err := ParseSegment("CLM*1001*500.00**** *P", "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seg.Tag() != "CLM" {
		t.Errorf("expected tag CLM, got %q", seg.Tag())
	}
	if seg.Len() != 8 {
		t.Errorf("expected 8 fields, got %d", seg.Len())
	}
	if v, _ := seg.Field(6); v != " " {
		t.Errorf("expected field 6 to be a space, got %q", v)
	}
}

func TestParseSegment_Empty(t *testing.T) {
	_, err := ParseSegment("  ", "*")
	if !errors.Is(err, ErrEmptySegment) {
		t.Errorf("expected ErrEmptySegment, got %v", err)
	}
}

func TestSegmentField_OutOfRange(t *testing.T) {
	seg, _ := ParseSegment("CLP*1001", "*")
	_, err := seg.Field(4)

	var fie *FieldIndexError
	if !errors.As(err, &fie) {
		t.Fatalf("expected *FieldIndexError, got %v", err)
	}
	if fie.Tag != "CLP" || fie.Index != 4 || fie.Have != 2 {
		t.Errorf("unexpected error detail: %+v", fie)
	}
	if !errors.Is(err, ErrMalformedSegment) {
		t.Error("expected error to match ErrMalformedSegment")
	}
}

func TestDialectParse(t *testing.T) {
	segs := HL7.Parse("MSH|^~\\&|Lab\nPID|1||123\n")
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[1].Tag() != "PID" || segs[1].Fields[3] != "123" {
		t.Errorf("unexpected PID segment: %v", segs[1].Fields)
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.txt")
	if err := os.WriteFile(path, []byte("CLM*1~"), 0o644); err != nil {
		t.Fatal(err)
	}

	msg, err := ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Source != path || msg.Text != "CLM*1~" {
		t.Errorf("unexpected message: %+v", msg)
	}

	_, err = ReadFile(filepath.Join(dir, "missing.txt"))
	if !errors.Is(err, ErrInputNotFound) {
		t.Errorf("expected ErrInputNotFound, got %v", err)
	}
}
