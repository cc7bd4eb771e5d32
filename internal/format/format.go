// Package format lays a transformed table out the way Open SDG expects it:
// a leading year column, zero or more disaggregation columns, and a trailing
// value column. Every other column is dropped.
package format

import (
	"oif/internal/config"
	"oif/internal/table"
	"oif/internal/transformer/builtin"
)

// Default output names of the leading and trailing columns.
const (
	DefaultYear  = "Year"
	DefaultValue = "Value"
)

// Disaggregation moves column From between the year and value columns,
// renamed To. An empty To keeps the name.
type Disaggregation = builtin.Mapping

// Spec describes one output layout.
type Spec struct {
	Year            string
	YearAs          string // default "Year"
	Value           string
	ValueAs         string // default "Value"
	Disaggregations []Disaggregation
}

// FromConfig converts an indicator's format block.
func FromConfig(f config.Format) Spec {
	s := Spec{Year: f.YearColumn, YearAs: f.YearAs, Value: f.ValueColumn, ValueAs: f.ValueAs}
	for _, d := range f.Disaggregations {
		s.Disaggregations = append(s.Disaggregations, Disaggregation{From: d.Column, To: d.As})
	}
	return s
}

// Identity returns the spec that maps t's own layout onto itself, assuming t
// is already in output form: first column year, last column value.
func Identity(t *table.Table) Spec {
	cols := t.Columns()
	s := Spec{}
	if len(cols) == 0 {
		return s
	}
	s.Year, s.YearAs = cols[0], cols[0]
	last := cols[len(cols)-1]
	s.Value, s.ValueAs = last, last
	for _, c := range cols[1 : len(cols)-1] {
		s.Disaggregations = append(s.Disaggregations, Disaggregation{From: c})
	}
	return s
}

// Mappings is the ordered column mapping the spec produces.
func (s Spec) Mappings() []builtin.Mapping {
	yearAs, valueAs := s.YearAs, s.ValueAs
	if yearAs == "" {
		yearAs = DefaultYear
	}
	if valueAs == "" {
		valueAs = DefaultValue
	}
	m := make([]builtin.Mapping, 0, len(s.Disaggregations)+2)
	m = append(m, builtin.Mapping{From: s.Year, To: yearAs})
	m = append(m, s.Disaggregations...)
	return append(m, builtin.Mapping{From: s.Value, To: valueAs})
}

// Apply formats t. A named column that t lacks, or two outputs with the same
// name, fail with a SchemaMismatch error.
func Apply(t *table.Table, s Spec) (*table.Table, error) {
	return builtin.Select{Columns: s.Mappings()}.Apply(t)
}

// Formatter adapts a Spec to the transformer step contract.
type Formatter struct{ Spec Spec }

func (Formatter) Name() string { return "format" }

func (f Formatter) Apply(t *table.Table) (*table.Table, error) { return Apply(t, f.Spec) }
