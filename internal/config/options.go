package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Options is the free-form option block of a transform step. Getters return
// the default when a key is absent or holds another type.
//
// Blocks come from encoding/json (numbers are float64) or yaml.v3
// (integers are int), so numeric getters accept both.
type Options map[string]any

func (o Options) String(key, def string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return def
}

func (o Options) Bool(key string, def bool) bool {
	if b, ok := o[key].(bool); ok {
		return b
	}
	return def
}

func (o Options) Int(key string, def int) int {
	if f, ok := number(o[key]); ok {
		return int(f)
	}
	return def
}

func (o Options) Float(key string, def float64) float64 {
	if f, ok := number(o[key]); ok {
		return f
	}
	return def
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// StringMap keeps the string-valued entries of an object option. The
// result is never nil.
func (o Options) StringMap(key string) map[string]string {
	out := map[string]string{}
	m, _ := o[key].(map[string]any)
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// StringSlice keeps the strings of a list option. A lone string is a
// one-element list; any other shape is nil.
func (o Options) StringSlice(key string) []string {
	switch v := o[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Any returns the raw value, nil when absent.
func (o Options) Any(key string) any { return o[key] }

// Decode fills dst from a nested block such as filter predicates or clean
// rules, through a JSON round trip. A missing key leaves dst untouched.
func (o Options) Decode(key string, dst any) error {
	v := o[key]
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err == nil {
		err = json.Unmarshal(b, dst)
	}
	if err != nil {
		return fmt.Errorf("option %s: %w", key, err)
	}
	return nil
}

// UnmarshalJSON decodes null or a missing block to an empty map.
func (o *Options) UnmarshalJSON(b []byte) error {
	m := map[string]any{}
	if len(b) > 0 && string(b) != "null" {
		if err := json.Unmarshal(b, &m); err != nil {
			return err
		}
	}
	if m == nil {
		m = map[string]any{}
	}
	*o = m
	return nil
}

// UnmarshalYAML decodes an empty block to an empty map.
func (o *Options) UnmarshalYAML(n *yaml.Node) error {
	m := map[string]any{}
	if err := n.Decode(&m); err != nil {
		return err
	}
	if m == nil {
		m = map[string]any{}
	}
	*o = m
	return nil
}
