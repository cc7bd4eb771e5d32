package builtin

import (
	"fmt"
	"regexp"

	"oif/internal/oiferr"
	"oif/internal/table"
)

// Extract appends column Into holding the first capture group of Pattern
// matched against the string form of Column. Rows that do not match get nil.
// A pattern without a group captures the whole match.
type Extract struct {
	Column  string
	Pattern string
	Into    string
	// Infer converts the captured text with table.Infer, so "2019" becomes
	// int64(2019).
	Infer bool
}

func (Extract) Name() string { return "extract" }

func (e Extract) Apply(in *table.Table) (*table.Table, error) {
	idx, err := indexes("extract", in, []string{e.Column})
	if err != nil {
		return nil, err
	}
	if in.Has(e.Into) {
		return nil, oiferr.Mismatchf("extract", "output column %q already exists", e.Into)
	}
	re, err := regexp.Compile(e.Pattern)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", e.Into, err)
	}
	group := 0
	if re.NumSubexp() > 0 {
		group = 1
	}

	rows := make([][]table.Value, in.Len())
	for r := range rows {
		row := in.Row(r)
		var got table.Value
		if src := row[idx[0]]; src != nil {
			if m := re.FindStringSubmatch(table.Format(src)); m != nil {
				got = m[group]
				if e.Infer {
					got = table.Infer(m[group])
				}
			}
		}
		rows[r] = append(row, got)
	}
	return table.New(append(in.Columns(), e.Into), rows)
}
