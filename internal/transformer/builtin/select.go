package builtin

import "oif/internal/table"

// Mapping renames column From to To. An empty To keeps the name.
type Mapping struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

func (m Mapping) target() string {
	if m.To == "" {
		return m.From
	}
	return m.To
}

// Select projects the table onto Columns, in order, renaming each one.
type Select struct {
	Columns []Mapping
}

// SelectNames is Select without renaming.
func SelectNames(names ...string) Select {
	m := make([]Mapping, len(names))
	for i, n := range names {
		m[i] = Mapping{From: n}
	}
	return Select{Columns: m}
}

func (Select) Name() string { return "select" }

func (s Select) Apply(in *table.Table) (*table.Table, error) {
	from := make([]string, len(s.Columns))
	to := make([]string, len(s.Columns))
	for i, m := range s.Columns {
		from[i], to[i] = m.From, m.target()
	}
	idx, err := indexes("select", in, from)
	if err != nil {
		return nil, err
	}
	if err := unique("select", to); err != nil {
		return nil, err
	}
	return project(in, idx, to)
}

// Rename renames columns in place and keeps every column in its position.
type Rename struct {
	Columns map[string]string
}

func (Rename) Name() string { return "rename" }

func (r Rename) Apply(in *table.Table) (*table.Table, error) {
	from := make([]string, 0, len(r.Columns))
	for f := range r.Columns {
		from = append(from, f)
	}
	if _, err := indexes("rename", in, sortedCopy(from)); err != nil {
		return nil, err
	}
	cols := in.Columns()
	for i, c := range cols {
		if to, ok := r.Columns[c]; ok && to != "" {
			cols[i] = to
		}
	}
	if err := unique("rename", cols); err != nil {
		return nil, err
	}
	idx := make([]int, len(cols))
	for i := range idx {
		idx[i] = i
	}
	return project(in, idx, cols)
}

// Drop removes the named columns.
type Drop struct {
	Columns []string
}

func (Drop) Name() string { return "drop" }

func (d Drop) Apply(in *table.Table) (*table.Table, error) {
	gone, err := indexes("drop", in, d.Columns)
	if err != nil {
		return nil, err
	}
	skip := make(map[int]struct{}, len(gone))
	for _, i := range gone {
		skip[i] = struct{}{}
	}
	var (
		keep  []int
		names []string
	)
	for i, c := range in.Columns() {
		if _, ok := skip[i]; !ok {
			keep = append(keep, i)
			names = append(names, c)
		}
	}
	return project(in, keep, names)
}
