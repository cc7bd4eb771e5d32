package builtin

import (
	"oif/internal/table"
)

// Predicate holds when the column's value equals any of Values. Cells and
// values are compared by their canonical string form, so int64(1990) matches
// "1990".
type Predicate struct {
	Column string        `json:"column" yaml:"column"`
	Values []table.Value `json:"values" yaml:"values"`
}

// Eq is the predicate column == v.
func Eq(column string, v table.Value) Predicate {
	return Predicate{Column: column, Values: []table.Value{v}}
}

// In is the predicate column in {vs...}.
func In(column string, vs ...table.Value) Predicate {
	return Predicate{Column: column, Values: vs}
}

// Filter keeps the rows for which every predicate holds. Row order is kept.
type Filter struct {
	Where []Predicate
}

func (Filter) Name() string { return "filter" }

func (f Filter) Apply(in *table.Table) (*table.Table, error) {
	type test struct {
		col int
		set map[string]struct{}
	}
	tests := make([]test, len(f.Where))
	for i, p := range f.Where {
		idx, err := indexes("filter", in, []string{p.Column})
		if err != nil {
			return nil, err
		}
		set := make(map[string]struct{}, len(p.Values))
		for _, v := range p.Values {
			set[table.Format(v)] = struct{}{}
		}
		tests[i] = test{col: idx[0], set: set}
	}

	var rows [][]table.Value
	for r := 0; r < in.Len(); r++ {
		keep := true
		for _, tc := range tests {
			if _, ok := tc.set[table.Format(in.At(r, tc.col))]; !ok {
				keep = false
				break
			}
		}
		if keep {
			rows = append(rows, in.Row(r))
		}
	}
	return table.New(in.Columns(), rows)
}
