package builtin

import "oif/internal/table"

// Require removes any row missing a value for one of Columns. nil and the
// empty string count as missing; 0 and false do not.
type Require struct {
	Columns []string
}

func (Require) Name() string { return "require" }

func (q Require) Apply(in *table.Table) (*table.Table, error) {
	idx, err := indexes("require", in, q.Columns)
	if err != nil {
		return nil, err
	}
	rows := make([][]table.Value, 0, in.Len())
	for r := 0; r < in.Len(); r++ {
		ok := true
		for _, c := range idx {
			if table.IsMissing(in.At(r, c)) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, in.Row(r))
		}
	}
	return table.New(in.Columns(), rows)
}
