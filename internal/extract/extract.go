// Package extract reads one table out of a source spreadsheet. Sources are
// addressed by URL, s3:// URI or local path and may be xlsx workbooks or
// CSV files; the layout parameters (sheet, usecols, skiprows, nrows) follow
// the coordinates kept in each indicator's config.
package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"oif/internal/config"
	"oif/internal/datasource"
	"oif/internal/datasource/file"
	"oif/internal/datasource/httpds"
	"oif/internal/oiferr"
	"oif/internal/table"
)

// Formats understood by Parse.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// Params locate a table inside a source file.
type Params struct {
	IO string
	// Sheet defaults to the first sheet of the workbook.
	Sheet string
	// UseCols is an Excel column spec such as "B:AA"; empty means all.
	UseCols string
	// SkipRows are the rows before the header row.
	SkipRows int
	// NRows caps the data rows after the header; 0 reads all.
	NRows int
	// Format is xlsx or csv; empty guesses from the IO extension.
	Format  string
	Headers map[string]string
}

// FromConfig copies an indicator's extract block.
func FromConfig(e config.Extract) Params {
	return Params{
		IO:       e.IO,
		Sheet:    e.SheetName,
		UseCols:  e.UseCols,
		SkipRows: e.SkipRows,
		NRows:    e.NRows,
		Format:   e.Format,
		Headers:  e.Headers,
	}
}

// ResolvedFormat is Format, or the format implied by the IO extension.
func (p Params) ResolvedFormat() string {
	if p.Format != "" {
		return strings.ToLower(p.Format)
	}
	name := p.IO
	if u, err := url.Parse(p.IO); err == nil && u.Scheme != "" && u.Path != "" {
		name = u.Path
	}
	if strings.EqualFold(path.Ext(name), ".csv") {
		return FormatCSV
	}
	return FormatXLSX
}

// Extractor resolves sources and parses them into tables.
type Extractor struct {
	HTTP *httpds.Client
	// S3 opens s3://bucket/key sources. When nil such sources are rejected.
	S3 func(bucket, key string) datasource.Source
}

// Source picks the backend for p.IO: http(s) URLs go through the retrying
// HTTP client, s3:// URIs through S3, anything else is a local path.
func (e *Extractor) Source(p Params) (datasource.Source, error) {
	loc := strings.TrimSpace(p.IO)
	if loc == "" {
		return nil, fmt.Errorf("extract: io is empty")
	}
	u, err := url.Parse(loc)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Windows drive letters parse as one-letter schemes.
		return file.NewLocal(loc), nil
	}
	switch u.Scheme {
	case "http", "https":
		c := e.HTTP
		if c == nil {
			c = httpds.NewClient(httpds.Config{MaxRetries: 3})
		}
		var h http.Header
		if len(p.Headers) > 0 {
			h = http.Header{}
			for k, v := range p.Headers {
				h.Set(k, v)
			}
		}
		return httpds.Source{Client: c, URL: loc, Headers: h}, nil
	case "s3":
		if e.S3 == nil {
			return nil, fmt.Errorf("extract: %s: no s3 client configured", loc)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("extract: %s: want s3://bucket/key", loc)
		}
		return e.S3(u.Host, key), nil
	case "file":
		return file.NewLocal(u.Path), nil
	}
	return nil, fmt.Errorf("extract: unsupported scheme %q in %s", u.Scheme, loc)
}

// Read returns the raw bytes of the source named by p. Read failures are
// ExternalIO errors.
func (e *Extractor) Read(ctx context.Context, p Params) ([]byte, error) {
	src, err := e.Source(p)
	if err != nil {
		return nil, err
	}
	return datasource.ReadAll(ctx, src)
}

// Extract reads the source named by p and parses it.
func (e *Extractor) Extract(ctx context.Context, p Params) (*table.Table, error) {
	b, err := e.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	return Parse(b, p)
}

// Parse turns raw file bytes into a table according to p.
//
// Header cells become strings: blanks are named "Unnamed: N" and repeats get
// ".1", ".2" suffixes. Data cells are inferred as int64, float64 or string,
// and blank cells are nil. Rows that are blank across every selected column
// are skipped and do not count towards NRows.
func Parse(b []byte, p Params) (*table.Table, error) {
	if p.SkipRows < 0 || p.NRows < 0 {
		return nil, fmt.Errorf("extract: skiprows and nrows must not be negative")
	}
	cols, err := ParseUseCols(p.UseCols)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	var grid [][]string
	switch f := p.ResolvedFormat(); f {
	case FormatXLSX:
		grid, err = readSheet(b, p.Sheet, p.IO)
	case FormatCSV:
		grid, err = readCSV(b)
	default:
		return nil, fmt.Errorf("extract: unknown format %q", f)
	}
	if err != nil {
		return nil, err
	}
	return fromGrid(grid, cols, p.SkipRows, p.NRows)
}

func readSheet(b []byte, sheet, name string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, oiferr.IO("open workbook "+name, err)
	}
	defer f.Close()

	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, fmt.Errorf("extract: workbook %s has no sheets", name)
		}
		sheet = list[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, oiferr.ConfigLookup("sheet", sheet, name)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("extract: read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(b []byte) ([][]string, error) {
	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("extract: csv: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\uFEFF")
	}
	return rows, nil
}

func fromGrid(grid [][]string, cols []int, skip, nrows int) (*table.Table, error) {
	if skip >= len(grid) {
		return nil, oiferr.Mismatchf("extract", "header expected at row %d but the sheet has %d row(s)", skip+1, len(grid))
	}
	body := grid[skip:]

	if cols == nil {
		width := 0
		for _, r := range body {
			if len(r) > width {
				width = len(r)
			}
		}
		cols = make([]int, width)
		for i := range cols {
			cols[i] = i
		}
	}
	pick := func(r []string) []string {
		out := make([]string, len(cols))
		for i, c := range cols {
			if c < len(r) {
				out[i] = r[c]
			}
		}
		return out
	}

	header := table.UniqueHeaders(pick(body[0]))
	var rows [][]table.Value
	for _, raw := range body[1:] {
		if nrows > 0 && len(rows) >= nrows {
			break
		}
		rec := pick(raw)
		row := make([]table.Value, len(rec))
		blank := true
		for i, s := range rec {
			row[i] = table.Infer(s)
			if row[i] != nil {
				blank = false
			}
		}
		if blank {
			continue
		}
		rows = append(rows, row)
	}
	return table.New(header, rows)
}
