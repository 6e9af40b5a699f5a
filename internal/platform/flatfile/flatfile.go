// Package flatfile filters delimited exports down to rows with the expected
// column count.
package flatfile

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ehr/interchange/internal/platform/output"
	"github.com/ehr/interchange/internal/platform/segment"
)

// Stats counts what Clean did with each row.
type Stats struct {
	Kept    int `json:"kept"`
	Dropped int `json:"dropped"`
}

// Clean copies every row of r that has exactly columns fields to w. Other
// rows are logged as misaligned and dropped. Rows are written with CRLF
// endings.
func Clean(r io.Reader, w io.Writer, columns int, logger zerolog.Logger) (Stats, error) {
	var st Stats
	if columns < 1 {
		return st, fmt.Errorf("flatfile: columns must be positive, got %d", columns)
	}

	br := bufio.NewReaderSize(r, 64*1024)
	// Skip UTF-8 BOM if present
	if bom, err := br.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = br.Discard(3)
	}

	reader := csv.NewReader(br)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // Variable fields

	writer := csv.NewWriter(w)
	writer.UseCRLF = true

	for row := 1; ; row++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, fmt.Errorf("reading row %d: %w", row, err)
		}
		if len(rec) != columns {
			st.Dropped++
			logger.Warn().
				Int("row", row).
				Int("columns", len(rec)).
				Int("expected", columns).
				Str("content", strings.Join(rec, ",")).
				Msg("row misaligned")
			continue
		}
		if err := writer.Write(rec); err != nil {
			return st, err
		}
		st.Kept++
	}
	writer.Flush()
	return st, writer.Error()
}

// CleanFile runs Clean from inPath to outPath. The output replaces outPath
// atomically.
func CleanFile(inPath, outPath string, columns int, logger zerolog.Logger) (Stats, error) {
	in, err := os.Open(inPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Stats{}, fmt.Errorf("%w: %s", segment.ErrInputNotFound, inPath)
		}
		return Stats{}, err
	}
	defer in.Close()

	var st Stats
	err = output.WriteFile(outPath, func(w io.Writer) error {
		var err error
		st, err = Clean(in, w, columns, logger)
		return err
	})
	if err != nil {
		return st, err
	}
	logger.Info().
		Str("input", inPath).
		Str("output", outPath).
		Int("kept", st.Kept).
		Int("dropped", st.Dropped).
		Msg("csv cleaned")
	return st, nil
}
