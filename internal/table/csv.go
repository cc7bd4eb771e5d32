package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes t with a header row. Cells use their Format form.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.cols); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	rec := make([]string, len(t.cols))
	for i, row := range t.rows {
		for j, v := range row {
			rec[j] = Format(v)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalCSV renders t as CSV bytes.
func MarshalCSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
