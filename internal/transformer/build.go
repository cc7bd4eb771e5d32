package transformer

import (
	"fmt"
	"regexp"

	"oif/internal/config"
	"oif/internal/table"
	"oif/internal/transformer/builtin"
)

// BuildChain builds every configured step in order. The first bad step
// fails the whole chain with its position in the error.
func BuildChain(steps []config.Transform) (Chain, error) {
	c := make(Chain, 0, len(steps))
	for i, s := range steps {
		t, err := Build(s)
		if err != nil {
			return nil, fmt.Errorf("transform[%d]: %w", i, err)
		}
		c = append(c, t)
	}
	return c, nil
}

// Build constructs one step from its kind and options. Option shapes:
//
//	select:    columns: [name | {from, to}, ...]
//	rename:    columns: {from: to, ...}
//	drop:      columns: [name, ...]
//	filter:    where: [{column, value} | {column, values: [...]}, ...]
//	clean:     column, rules: [{pattern, replacement, regex}, ...]
//	unpivot:   id: [...], value: [...], var_name, value_name
//	extract:   column, pattern, into, infer
//	normalize: columns: [...], fold_accents
//	coerce:    types: {column: int|float|bool|string}
//	require:   columns: [...]
//	index:     group: [...], period, base, value, into
func Build(t config.Transform) (Transformer, error) {
	o := t.Options
	switch t.Kind {
	case "select":
		return buildSelect(o)
	case "rename":
		m := o.StringMap("columns")
		if len(m) == 0 {
			return nil, fmt.Errorf("rename: columns must map at least one column")
		}
		return builtin.Rename{Columns: m}, nil
	case "drop":
		return builtin.Drop{Columns: o.StringSlice("columns")}, nil
	case "filter":
		return buildFilter(o)
	case "clean":
		c := builtin.Clean{Column: o.String("column", "")}
		if c.Column == "" {
			return nil, fmt.Errorf("clean: column is required")
		}
		if err := o.Decode("rules", &c.Rules); err != nil {
			return nil, fmt.Errorf("clean: %w", err)
		}
		if _, err := c.Compile(); err != nil {
			return nil, err
		}
		return c, nil
	case "unpivot":
		return builtin.Unpivot{
			ID:        o.StringSlice("id"),
			Value:     o.StringSlice("value"),
			VarName:   o.String("var_name", ""),
			ValueName: o.String("value_name", ""),
		}, nil
	case "extract":
		e := builtin.Extract{
			Column:  o.String("column", ""),
			Pattern: o.String("pattern", ""),
			Into:    o.String("into", ""),
			Infer:   o.Bool("infer", false),
		}
		if e.Column == "" || e.Pattern == "" || e.Into == "" {
			return nil, fmt.Errorf("extract: column, pattern and into are required")
		}
		if _, err := regexp.Compile(e.Pattern); err != nil {
			return nil, fmt.Errorf("extract: %w", err)
		}
		return e, nil
	case "normalize":
		return builtin.Normalize{
			Columns:     o.StringSlice("columns"),
			FoldAccents: o.Bool("fold_accents", false),
		}, nil
	case "coerce":
		return builtin.Coerce{Types: o.StringMap("types")}, nil
	case "require":
		return builtin.Require{Columns: o.StringSlice("columns")}, nil
	case "index":
		x := builtin.Index{
			Group:  o.StringSlice("group"),
			Period: o.String("period", ""),
			Base:   table.Format(o.Any("base")),
			Value:  o.String("value", ""),
			Into:   o.String("into", ""),
		}
		if x.Period == "" || x.Value == "" || x.Base == "" {
			return nil, fmt.Errorf("index: period, base and value are required")
		}
		return x, nil
	}
	return nil, fmt.Errorf("unknown transform kind %q", t.Kind)
}

func buildSelect(o config.Options) (Transformer, error) {
	raw, _ := o.Any("columns").([]any)
	if len(raw) == 0 {
		return nil, fmt.Errorf("select: columns must list at least one column")
	}
	s := builtin.Select{Columns: make([]builtin.Mapping, 0, len(raw))}
	for i, c := range raw {
		switch v := c.(type) {
		case string:
			s.Columns = append(s.Columns, builtin.Mapping{From: v})
		case map[string]any:
			m := config.Options(v)
			from := m.String("from", "")
			if from == "" {
				return nil, fmt.Errorf("select: columns[%d] has no from", i)
			}
			s.Columns = append(s.Columns, builtin.Mapping{From: from, To: m.String("to", "")})
		default:
			return nil, fmt.Errorf("select: columns[%d] must be a name or {from, to}", i)
		}
	}
	return s, nil
}

func buildFilter(o config.Options) (Transformer, error) {
	var where []struct {
		Column string        `json:"column"`
		Value  table.Value   `json:"value"`
		Values []table.Value `json:"values"`
	}
	if err := o.Decode("where", &where); err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	f := builtin.Filter{Where: make([]builtin.Predicate, 0, len(where))}
	for i, w := range where {
		if w.Column == "" {
			return nil, fmt.Errorf("filter: where[%d] has no column", i)
		}
		switch {
		case len(w.Values) > 0:
			f.Where = append(f.Where, builtin.In(w.Column, w.Values...))
		case w.Value != nil:
			f.Where = append(f.Where, builtin.Eq(w.Column, w.Value))
		default:
			return nil, fmt.Errorf("filter: where[%d] needs value or values", i)
		}
	}
	return f, nil
}
