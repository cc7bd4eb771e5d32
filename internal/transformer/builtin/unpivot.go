package builtin

import (
	"oif/internal/oiferr"
	"oif/internal/table"
)

// Unpivot turns a wide table long. Each input row yields one output row per
// value column, holding the identifier cells, the value column's name under
// VarName and its cell under ValueName.
//
// Output is grouped by value column: every input row for the first value
// column, then every input row for the second, and so on. An empty Value
// list unpivots every non-identifier column.
type Unpivot struct {
	ID        []string
	Value     []string
	VarName   string
	ValueName string
}

func (Unpivot) Name() string { return "unpivot" }

func (u Unpivot) names() (string, string) {
	vr, vl := u.VarName, u.ValueName
	if vr == "" {
		vr = "variable"
	}
	if vl == "" {
		vl = "value"
	}
	return vr, vl
}

func (u Unpivot) Apply(in *table.Table) (*table.Table, error) {
	ids, err := indexes("unpivot", in, u.ID)
	if err != nil {
		return nil, err
	}

	valueCols := u.Value
	if len(valueCols) == 0 {
		isID := make(map[string]struct{}, len(u.ID))
		for _, c := range u.ID {
			isID[c] = struct{}{}
		}
		for _, c := range in.Columns() {
			if _, ok := isID[c]; !ok {
				valueCols = append(valueCols, c)
			}
		}
	}
	vals, err := indexes("unpivot", in, valueCols)
	if err != nil {
		return nil, err
	}

	varName, valueName := u.names()
	if varName == valueName {
		return nil, oiferr.Mismatchf("unpivot", "variable and value columns are both named %q", varName)
	}
	cols := append(append([]string(nil), u.ID...), varName, valueName)
	if err := unique("unpivot", cols); err != nil {
		return nil, err
	}

	rows := make([][]table.Value, 0, in.Len()*len(vals))
	for i, c := range vals {
		for r := 0; r < in.Len(); r++ {
			row := make([]table.Value, 0, len(cols))
			for _, id := range ids {
				row = append(row, in.At(r, id))
			}
			row = append(row, valueCols[i], in.At(r, c))
			rows = append(rows, row)
		}
	}
	return table.New(cols, rows)
}
