package ddl

import "oif/internal/table"

// Kind is the logical type of a column, independent of any SQL dialect.
type Kind int

const (
	Text Kind = iota
	Integer
	Real
	Boolean
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Real:
		return "real"
	case Boolean:
		return "boolean"
	}
	return "text"
}

// ColumnDef describes one column of a table definition.
type ColumnDef struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// TableDef holds the dotted table name and its ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Infer derives a table definition from the cells of t. A column whose
// non-nil cells are all int64 is Integer; any numeric mix is Real; all
// bool is Boolean; anything else, including an all-nil column, is Text.
// A column holding any nil is Nullable.
func Infer(fqn string, t *table.Table) TableDef {
	def := TableDef{FQN: fqn, Columns: make([]ColumnDef, t.Width())}
	for c, name := range t.Columns() {
		col := ColumnDef{Name: name}
		var ints, floats, bools, others int
		for r := 0; r < t.Len(); r++ {
			switch t.At(r, c).(type) {
			case nil:
				col.Nullable = true
			case int64, int:
				ints++
			case float64:
				floats++
			case bool:
				bools++
			default:
				others++
			}
		}
		switch {
		case others > 0 || ints+floats+bools == 0:
			col.Kind = Text
		case bools > 0 && ints+floats > 0:
			col.Kind = Text
		case bools > 0:
			col.Kind = Boolean
		case floats > 0:
			col.Kind = Real
		default:
			col.Kind = Integer
		}
		def.Columns[c] = col
	}
	return def
}
