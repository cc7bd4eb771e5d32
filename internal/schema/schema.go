// Package schema validates tables against declarative, per-stage schemas.
//
// A Schema lists the columns a table is expected to carry, each with a type
// and optional constraints. Validate checks every column and every row and
// reports all violations at once; on success it returns the table it was
// given, so validation can sit inline between pipeline stages.
//
// Schemas are kept in a YAML or JSON registry keyed
// theme -> indicator -> stage:
//
//	air:
//	  one:
//	    transformed:
//	      strict: true
//	      columns:
//	        - { name: ShortPollName, type: string, enum: [NH3, NOx, SO2, NMVOC, PM2.5] }
//	        - { name: EmissionYear, type: year }
//	        - { name: Index, type: float, min: 0, nullable: true }
package schema

import (
	"fmt"
	"regexp"
	"sync"

	"oif/internal/table"
)

// Stage names used by the pipeline.
const (
	StageExtracted   = "extracted"
	StageTransformed = "transformed"
	StageFormatted   = "formatted"
)

// Column types.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeNumber = "number" // alias of float
	TypeBool   = "bool"
	TypeYear   = "year" // int64, or a four-digit string
	TypeAny    = "any"
)

// Column declares one expected column.
type Column struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`

	// Required defaults to true; an optional column may be absent, but is
	// checked when present.
	Required *bool `json:"required,omitempty" yaml:"required,omitempty"`
	Nullable bool  `json:"nullable,omitempty" yaml:"nullable,omitempty"`

	Enum      []any    `json:"enum,omitempty" yaml:"enum,omitempty"`
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Unique    bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
	MinLength *int     `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty" yaml:"max_length,omitempty"`
}

// IsRequired reports whether the column must be present.
func (c Column) IsRequired() bool { return c.Required == nil || *c.Required }

// Schema is the expected shape of a table at one stage.
type Schema struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Strict rejects columns the schema does not declare.
	Strict bool `json:"strict,omitempty" yaml:"strict,omitempty"`
	// Ordered requires declared columns to appear in declared order.
	Ordered bool     `json:"ordered,omitempty" yaml:"ordered,omitempty"`
	Columns []Column `json:"columns" yaml:"columns"`

	once sync.Once
	meta []columnMeta
	cErr error
}

// columnMeta is the precompiled form of a Column used on the hot path.
type columnMeta struct {
	Column
	required bool
	enumSet  map[string]struct{}
	re       *regexp.Regexp
}

// Compile checks the schema for unknown types, bad patterns and inverted
// ranges. Validate compiles lazily; registries call Compile at load time.
func (s *Schema) Compile() error {
	s.once.Do(func() {
		seen := make(map[string]struct{}, len(s.Columns))
		s.meta = make([]columnMeta, 0, len(s.Columns))
		for i, c := range s.Columns {
			if c.Name == "" {
				s.cErr = fmt.Errorf("schema %s: columns[%d] has no name", s.Name, i)
				return
			}
			if _, dup := seen[c.Name]; dup {
				s.cErr = fmt.Errorf("schema %s: column %q declared twice", s.Name, c.Name)
				return
			}
			seen[c.Name] = struct{}{}

			switch c.Type {
			case "":
				c.Type = TypeAny
			case TypeString, TypeInt, TypeFloat, TypeNumber, TypeBool, TypeYear, TypeAny:
			default:
				s.cErr = fmt.Errorf("schema %s: column %q: unknown type %q", s.Name, c.Name, c.Type)
				return
			}
			if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
				s.cErr = fmt.Errorf("schema %s: column %q: min %v > max %v", s.Name, c.Name, *c.Min, *c.Max)
				return
			}

			m := columnMeta{Column: c, required: c.IsRequired()}
			if len(c.Enum) > 0 {
				m.enumSet = make(map[string]struct{}, len(c.Enum))
				for _, e := range c.Enum {
					m.enumSet[table.Format(e)] = struct{}{}
				}
			}
			if c.Pattern != "" {
				re, err := regexp.Compile(c.Pattern)
				if err != nil {
					s.cErr = fmt.Errorf("schema %s: column %q: %w", s.Name, c.Name, err)
					return
				}
				m.re = re
			}
			s.meta = append(s.meta, m)
		}
	})
	return s.cErr
}

// ColumnNames lists the declared column names in order.
func (s *Schema) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}
