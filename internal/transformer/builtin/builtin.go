// Package builtin contains the small, reusable table steps indicator
// transforms are composed from. Every step is a value type with a Name and an
// Apply(*table.Table) (*table.Table, error) method; none of them mutate the
// table they are given.
//
// Column references are checked before any work is done. A step that names a
// column the table lacks fails with an oiferr SchemaMismatch error and returns
// no table.
package builtin

import (
	"sort"

	"oif/internal/oiferr"
	"oif/internal/table"
)

// indexes resolves column names to positions, failing on the first unknown one.
func indexes(step string, t *table.Table, names []string) ([]int, error) {
	out := make([]int, len(names))
	for i, n := range names {
		j, ok := t.ColumnIndex(n)
		if !ok {
			return nil, oiferr.Mismatch(step, n, t.Columns())
		}
		out[i] = j
	}
	return out, nil
}

// unique fails when names repeats a column name.
func unique(step string, names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			return oiferr.Mismatchf(step, "duplicate output column %q", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// mapCells returns a copy of t with fn applied to every cell of the columns
// at idx. Other cells are shared with the input rows' values.
func mapCells(t *table.Table, idx []int, fn func(table.Value) table.Value) (*table.Table, error) {
	rows := make([][]table.Value, t.Len())
	for r := range rows {
		row := t.Row(r)
		for _, c := range idx {
			row[c] = fn(row[c])
		}
		rows[r] = row
	}
	return table.New(t.Columns(), rows)
}

// project builds a table from the columns at idx, renamed to names.
func project(t *table.Table, idx []int, names []string) (*table.Table, error) {
	rows := make([][]table.Value, t.Len())
	for r := range rows {
		row := make([]table.Value, len(idx))
		for i, c := range idx {
			row[i] = t.At(r, c)
		}
		rows[r] = row
	}
	return table.New(names, rows)
}

func sortedCopy(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}
