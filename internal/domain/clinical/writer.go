package clinical

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/ehr/interchange/internal/platform/output"
	"github.com/ehr/interchange/internal/platform/segment"
)

var csvHeader = []string{"Test Name", "Result", "Units", "Reference Range"}

// Entries in the JSON extraction document carry the source segment tag
// ahead of the record fields.
type headerEntry struct {
	Segment string `json:"Segment"`
	HeaderRecord
}

type patientEntry struct {
	Segment string `json:"Segment"`
	PatientRecord
}

type orderEntry struct {
	Segment string `json:"Segment"`
	OrderRecord
}

func documentEntries(records []segment.Record) []interface{} {
	out := make([]interface{}, 0, len(records))
	for _, rec := range records {
		switch r := rec.(type) {
		case HeaderRecord:
			out = append(out, headerEntry{"MSH", r})
		case PatientRecord:
			out = append(out, patientEntry{"PID", r})
		case OrderRecord:
			out = append(out, orderEntry{"OBR", r})
		}
	}
	return out
}

// WriteJSON writes the header, patient and order records as a JSON array
// indented by four spaces.
func WriteJSON(w io.Writer, records []segment.Record) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(documentEntries(records)); err != nil {
		return err
	}
	_, err := w.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	return err
}

// WriteCSV writes one row per observation under a fixed header. Rows end in
// CRLF.
func WriteCSV(w io.Writer, obs []ObservationRecord) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, o := range obs {
		if err := cw.Write([]string{o.TestName, o.Result, o.Units, o.ReferenceRange}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteParquet writes the observations as a snappy-compressed Parquet file.
func WriteParquet(w io.Writer, obs []ObservationRecord) error {
	pw := parquet.NewGenericWriter[ObservationRecord](w,
		parquet.Compression(&parquet.Snappy),
		parquet.CreatedBy("interchange", "1.0", ""),
	)
	if len(obs) > 0 {
		if _, err := pw.Write(obs); err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}
	return pw.Close()
}

// WriteObservationSummary writes title followed by one indented line per
// observation.
func WriteObservationSummary(w io.Writer, title string, obs []ObservationRecord) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, title)
	for _, o := range obs {
		fmt.Fprintf(bw, "  %s\n", o.Line())
	}
	return bw.Flush()
}

// Outputs names the files produced from one clinical message. Empty paths
// are skipped.
type Outputs struct {
	JSON    string
	CSV     string
	Parquet string
}

// Write produces every requested output. A failure on one destination does
// not stop the others; all failures are returned joined.
func (o Outputs) Write(res *Result) error {
	var errs []error
	if o.JSON != "" {
		errs = append(errs, output.WriteFile(o.JSON, func(w io.Writer) error {
			return WriteJSON(w, res.Records)
		}))
	}
	if o.CSV != "" {
		errs = append(errs, output.WriteFile(o.CSV, func(w io.Writer) error {
			return WriteCSV(w, res.Observations)
		}))
	}
	if o.Parquet != "" {
		errs = append(errs, output.WriteFile(o.Parquet, func(w io.Writer) error {
			return WriteParquet(w, res.Observations)
		}))
	}
	return errors.Join(errs...)
}
