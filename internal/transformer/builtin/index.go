package builtin

import (
	"strings"

	"oif/internal/oiferr"
	"oif/internal/table"
)

// Index appends column Into holding each row's Value as a percentage of the
// Value in the base row of its group: the row of the same Group whose Period
// formats as Base. Groups without a numeric, non-zero base get nil, as do
// rows whose own value is not numeric.
type Index struct {
	Group  []string
	Period string
	Base   string
	Value  string
	Into   string
}

func (Index) Name() string { return "index" }

func (x Index) Apply(in *table.Table) (*table.Table, error) {
	group, err := indexes("index", in, x.Group)
	if err != nil {
		return nil, err
	}
	pv, err := indexes("index", in, []string{x.Period, x.Value})
	if err != nil {
		return nil, err
	}
	into := x.Into
	if into == "" {
		into = "Index"
	}
	if in.Has(into) {
		return nil, oiferr.Mismatchf("index", "output column %q already exists", into)
	}

	key := func(r int) string {
		parts := make([]string, len(group))
		for i, c := range group {
			parts[i] = table.Format(in.At(r, c))
		}
		return strings.Join(parts, "\x00")
	}

	base := make(map[string]float64)
	for r := 0; r < in.Len(); r++ {
		if table.Format(in.At(r, pv[0])) != x.Base {
			continue
		}
		k := key(r)
		if _, seen := base[k]; seen {
			continue
		}
		if f, ok := table.Float(in.At(r, pv[1])); ok && f != 0 {
			base[k] = f
		}
	}

	rows := make([][]table.Value, in.Len())
	for r := range rows {
		var v table.Value
		if b, ok := base[key(r)]; ok {
			if f, ok := table.Float(in.At(r, pv[1])); ok {
				v = f / b * 100
			}
		}
		rows[r] = append(in.Row(r), v)
	}
	return table.New(append(in.Columns(), into), rows)
}
