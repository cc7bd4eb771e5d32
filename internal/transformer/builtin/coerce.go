package builtin

import (
	"fmt"
	"strconv"
	"strings"

	"oif/internal/table"
)

// Coerce converts string cells of the listed columns to the named type:
// "int" (int64), "float" (float64), "bool" or "string". Cells that do not
// parse are left unchanged so the schema validator can report them. Numeric
// cells given type "string" are formatted.
type Coerce struct {
	Types map[string]string // column -> int | float | bool | string
}

func (Coerce) Name() string { return "coerce" }

func (c Coerce) Apply(in *table.Table) (*table.Table, error) {
	cols := make([]string, 0, len(c.Types))
	for col := range c.Types {
		cols = append(cols, col)
	}
	cols = sortedCopy(cols)
	idx, err := indexes("coerce", in, cols)
	if err != nil {
		return nil, err
	}
	conv := make(map[int]func(table.Value) table.Value, len(idx))
	for i, col := range cols {
		fn, err := coercer(c.Types[col])
		if err != nil {
			return nil, fmt.Errorf("coerce %s: %w", col, err)
		}
		conv[idx[i]] = fn
	}

	rows := make([][]table.Value, in.Len())
	for r := range rows {
		row := in.Row(r)
		for j, fn := range conv {
			row[j] = fn(row[j])
		}
		rows[r] = row
	}
	return table.New(in.Columns(), rows)
}

func coercer(kind string) (func(table.Value) table.Value, error) {
	switch strings.ToLower(kind) {
	case "int":
		return func(v table.Value) table.Value {
			s, ok := v.(string)
			if !ok {
				if f, isF := v.(float64); isF && f == float64(int64(f)) {
					return int64(f)
				}
				return v
			}
			if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return i
			}
			return v
		}, nil
	case "float", "number":
		return func(v table.Value) table.Value {
			switch t := v.(type) {
			case int64:
				return float64(t)
			case string:
				if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
					return f
				}
			}
			return v
		}, nil
	case "bool":
		return func(v table.Value) table.Value {
			if s, ok := v.(string); ok {
				if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
					return b
				}
			}
			return v
		}, nil
	case "string":
		return func(v table.Value) table.Value {
			if v == nil {
				return nil
			}
			return table.Format(v)
		}, nil
	}
	return nil, fmt.Errorf("unknown type %q (want int, float, bool or string)", kind)
}
