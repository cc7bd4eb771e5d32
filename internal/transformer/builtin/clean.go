package builtin

import (
	"fmt"
	"regexp"
	"strings"

	"oif/internal/table"
)

// Rule replaces every occurrence of Pattern with Replacement. With Regex set,
// Pattern is an RE2 expression and Replacement may use $1-style expansion.
type Rule struct {
	Pattern     string `json:"pattern" yaml:"pattern"`
	Replacement string `json:"replacement" yaml:"replacement"`
	Regex       bool   `json:"regex" yaml:"regex"`
}

// Clean applies Rules, in order, to the string cells of Column. Each rule sees
// the output of the one before it. Non-string cells are left alone.
type Clean struct {
	Column string
	Rules  []Rule
}

// Replace is a literal Rule.
func Replace(pattern, replacement string) Rule {
	return Rule{Pattern: pattern, Replacement: replacement}
}

func (Clean) Name() string { return "clean" }

// Compile checks every regex rule. Build calls it so a bad pattern fails at
// config load rather than mid-run.
func (c Clean) Compile() ([]func(string) string, error) {
	fns := make([]func(string) string, len(c.Rules))
	for i, r := range c.Rules {
		r := r
		if !r.Regex {
			fns[i] = func(s string) string { return strings.ReplaceAll(s, r.Pattern, r.Replacement) }
			continue
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("clean %s: rule %d: %w", c.Column, i, err)
		}
		fns[i] = func(s string) string { return re.ReplaceAllString(s, r.Replacement) }
	}
	return fns, nil
}

func (c Clean) Apply(in *table.Table) (*table.Table, error) {
	idx, err := indexes("clean", in, []string{c.Column})
	if err != nil {
		return nil, err
	}
	fns, err := c.Compile()
	if err != nil {
		return nil, err
	}
	return mapCells(in, idx, func(v table.Value) table.Value {
		s, ok := v.(string)
		if !ok {
			return v
		}
		for _, fn := range fns {
			s = fn(s)
		}
		return s
	})
}
