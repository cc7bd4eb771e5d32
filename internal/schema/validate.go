package schema

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"oif/internal/oiferr"
	"oif/internal/table"
)

// Checks reported in a Violation.
const (
	CheckMissingColumn    = "missing_column"
	CheckUnexpectedColumn = "unexpected_column"
	CheckColumnOrder      = "column_order"
	CheckType             = "type"
	CheckNull             = "not_null"
	CheckEnum             = "enum"
	CheckMin              = "min"
	CheckMax              = "max"
	CheckPattern          = "pattern"
	CheckUnique           = "unique"
	CheckMinLength        = "min_length"
	CheckMaxLength        = "max_length"
)

// maxExampleRows caps the row indexes kept per violation.
const maxExampleRows = 10

// Violation aggregates every failure of one check on one column.
type Violation struct {
	Column string
	Check  string
	// Value is the first offending cell, or a description for column-level
	// checks.
	Value table.Value
	// Rows holds up to ten offending row indexes, in row order.
	Rows []int
	// Count is the total number of offending rows (1 for column-level checks).
	Count int
}

func (v Violation) String() string {
	if len(v.Rows) == 0 {
		return fmt.Sprintf("%s: %s (%v)", v.Column, v.Check, v.Value)
	}
	return fmt.Sprintf("%s: %s failed for %d row(s), first %#v at row %d", v.Column, v.Check, v.Count, v.Value, v.Rows[0])
}

// ValidationError lists every violation found in one Validate call.
type ValidationError struct {
	Schema     string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("[%s] schema %s: %d violation(s): %s",
		oiferr.KindSchemaValidation, e.Schema, len(e.Violations), strings.Join(parts, "; "))
}

// Is makes errors.Is(err, oiferr.ErrSchemaValidation) hold.
func (e *ValidationError) Is(target error) bool {
	return oiferr.ErrSchemaValidation.Is(target)
}

// Has reports whether a violation of check on column was recorded.
func (e *ValidationError) Has(column, check string) bool {
	for _, v := range e.Violations {
		if v.Column == column && v.Check == check {
			return true
		}
	}
	return false
}

// collector aggregates violations per (column, check) in first-seen order.
type collector struct {
	order []*Violation
	byKey map[[2]string]*Violation
}

func (c *collector) add(column, check string, value table.Value, row int) {
	if c.byKey == nil {
		c.byKey = make(map[[2]string]*Violation)
	}
	k := [2]string{column, check}
	v, ok := c.byKey[k]
	if !ok {
		v = &Violation{Column: column, Check: check, Value: value}
		c.byKey[k] = v
		c.order = append(c.order, v)
	}
	v.Count++
	if row >= 0 && len(v.Rows) < maxExampleRows {
		v.Rows = append(v.Rows, row)
	}
}

// Validate checks t against s. It returns t itself when every check passes,
// and a *ValidationError listing all violations otherwise. t is never
// modified. A schema that does not compile is reported as a plain error.
func Validate(t *table.Table, s *Schema) (*table.Table, error) {
	if err := s.Compile(); err != nil {
		return nil, err
	}
	var c collector

	declared := make(map[string]struct{}, len(s.meta))
	var present []string
	for _, m := range s.meta {
		declared[m.Name] = struct{}{}
		if t.Has(m.Name) {
			present = append(present, m.Name)
		} else if m.required {
			c.add(m.Name, CheckMissingColumn, nil, -1)
		}
	}

	var actual []string
	for _, col := range t.Columns() {
		if _, ok := declared[col]; ok {
			actual = append(actual, col)
		} else if s.Strict {
			c.add(col, CheckUnexpectedColumn, nil, -1)
		}
	}
	if s.Ordered && strings.Join(actual, "\x00") != strings.Join(present, "\x00") {
		c.add(strings.Join(present, ","), CheckColumnOrder, strings.Join(actual, ","), -1)
	}

	for i := range s.meta {
		m := &s.meta[i]
		idx, ok := t.ColumnIndex(m.Name)
		if !ok {
			continue
		}
		checkColumn(&c, t, idx, m)
	}

	if len(c.order) == 0 {
		return t, nil
	}
	out := &ValidationError{Schema: s.Name, Violations: make([]Violation, len(c.order))}
	for i, v := range c.order {
		out.Violations[i] = *v
	}
	return nil, out
}

func checkColumn(c *collector, t *table.Table, idx int, m *columnMeta) {
	var seen map[string]int
	if m.Unique {
		seen = make(map[string]int, t.Len())
	}
	for r := 0; r < t.Len(); r++ {
		v := t.At(r, idx)
		if v == nil {
			if !m.Nullable {
				c.add(m.Name, CheckNull, nil, r)
			}
			continue
		}
		num, ok := typed(m.Type, v)
		if !ok {
			c.add(m.Name, CheckType, v, r)
			continue
		}

		if m.enumSet != nil {
			if _, ok := m.enumSet[table.Format(v)]; !ok {
				c.add(m.Name, CheckEnum, v, r)
			}
		}
		if num != nil {
			if m.Min != nil && *num < *m.Min {
				c.add(m.Name, CheckMin, v, r)
			}
			if m.Max != nil && *num > *m.Max {
				c.add(m.Name, CheckMax, v, r)
			}
		}
		if s, isStr := v.(string); isStr {
			if m.re != nil && !m.re.MatchString(s) {
				c.add(m.Name, CheckPattern, v, r)
			}
			n := utf8.RuneCountInString(s)
			if m.MinLength != nil && n < *m.MinLength {
				c.add(m.Name, CheckMinLength, v, r)
			}
			if m.MaxLength != nil && n > *m.MaxLength {
				c.add(m.Name, CheckMaxLength, v, r)
			}
		}
		if seen != nil {
			k := table.Format(v)
			if _, dup := seen[k]; dup {
				c.add(m.Name, CheckUnique, v, r)
			} else {
				seen[k] = r
			}
		}
	}
}

// typed reports whether v conforms to typ and, for numeric values, returns
// the number used by min/max checks.
func typed(typ string, v table.Value) (*float64, bool) {
	num := func(f float64) (*float64, bool) { return &f, true }
	switch typ {
	case TypeString:
		_, ok := v.(string)
		return nil, ok
	case TypeInt:
		switch n := v.(type) {
		case int64:
			return num(float64(n))
		case int:
			return num(float64(n))
		}
		return nil, false
	case TypeFloat, TypeNumber:
		if f, ok := table.Float(v); ok {
			return num(f)
		}
		return nil, false
	case TypeBool:
		_, ok := v.(bool)
		return nil, ok
	case TypeYear:
		switch n := v.(type) {
		case int64:
			if n >= 1000 && n <= 9999 {
				return num(float64(n))
			}
		case int:
			if n >= 1000 && n <= 9999 {
				return num(float64(n))
			}
		case string:
			if len(n) == 4 {
				if y, err := strconv.Atoi(n); err == nil && y >= 1000 {
					return num(float64(y))
				}
			}
		}
		return nil, false
	default:
		if f, ok := table.Float(v); ok {
			return num(f)
		}
		return nil, true
	}
}
