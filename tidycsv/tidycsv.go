// Package tidycsv reads tidy delimited tables of neutralization
// measurements, sniffing the delimiter from the content and transparently
// decompressing common formats.
package tidycsv

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/csimplestring/go-csv/detector"
)

// DetermineDelimiter returns the single most likely rune that would delimit
// the values in the reader, assuming a CSV-like file.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	if len(delimiters) > 0 {
		return rune(delimiters[0][0])
	}

	return ','
}

// Read parses a tidy delimited table into its header row and data records.
// The delimiter is detected from the content, defaulting to a comma. Rows
// may have ragged widths; width against the header is the caller's check.
func Read(r io.Reader) (header []string, records [][]string, err error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil, fmt.Errorf("no rows in input")
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = DetermineDelimiter(bytes.NewReader(raw))
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("no rows in input")
	}
	return rows[0], rows[1:], nil
}

// ReadFile reads the tidy table at path, decompressing it if Open detects a
// compressed format.
func ReadFile(path string) (header []string, records [][]string, err error) {
	rc, err := Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	return Read(rc)
}
