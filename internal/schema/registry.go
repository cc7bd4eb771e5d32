package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"oif/internal/oiferr"
	"oif/internal/table"
)

// Registry holds the schemas of every (theme, indicator, stage). It is
// read-only after loading and safe for concurrent use.
type Registry struct {
	themes map[string]map[string]map[string]*Schema
}

// LoadRegistry reads a schema file. .yaml/.yml files are YAML; anything else
// is JSON. Every schema is compiled, so a bad pattern or type fails here.
func LoadRegistry(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	r, err := ParseRegistry(b, format)
	if err != nil {
		return nil, fmt.Errorf("schemas %s: %w", path, err)
	}
	return r, nil
}

// ParseRegistry decodes a theme -> indicator -> stage -> schema document.
func ParseRegistry(b []byte, format string) (*Registry, error) {
	var themes map[string]map[string]map[string]*Schema
	switch format {
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&themes); err != nil {
			return nil, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&themes); err != nil {
			return nil, err
		}
	}
	r := &Registry{themes: themes}
	for _, k := range r.Keys() {
		s := themes[k[0]][k[1]][k[2]]
		if s == nil {
			return nil, fmt.Errorf("%s/%s/%s: empty schema", k[0], k[1], k[2])
		}
		if s.Name == "" {
			s.Name = strings.Join(k[:], "/")
		}
		if err := s.Compile(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewRegistry builds a registry in code, mainly for tests.
func NewRegistry() *Registry {
	return &Registry{themes: map[string]map[string]map[string]*Schema{}}
}

// Add registers s and returns the registry for chaining. It is meant for
// building registries before use, not for concurrent mutation.
func (r *Registry) Add(theme, indicator, stage string, s *Schema) *Registry {
	if r.themes[theme] == nil {
		r.themes[theme] = map[string]map[string]*Schema{}
	}
	if r.themes[theme][indicator] == nil {
		r.themes[theme][indicator] = map[string]*Schema{}
	}
	if s.Name == "" {
		s.Name = theme + "/" + indicator + "/" + stage
	}
	r.themes[theme][indicator][stage] = s
	return r
}

// Lookup returns the schema for one stage. Any missing level is a
// ConfigLookup error naming the key that was not found.
func (r *Registry) Lookup(theme, indicator, stage string) (*Schema, error) {
	inds, ok := r.themes[theme]
	if !ok {
		return nil, oiferr.ConfigLookup("theme", theme, "schemas")
	}
	stages, ok := inds[indicator]
	if !ok {
		return nil, oiferr.ConfigLookup("indicator", indicator, "schemas", theme)
	}
	s, ok := stages[stage]
	if !ok {
		return nil, oiferr.ConfigLookup("stage", stage, "schemas", theme, indicator)
	}
	return s, nil
}

// Find is Lookup for optional stages: it reports false instead of failing.
func (r *Registry) Find(theme, indicator, stage string) (*Schema, bool) {
	if r == nil {
		return nil, false
	}
	s, err := r.Lookup(theme, indicator, stage)
	return s, err == nil
}

// Validate looks up the stage's schema and validates t against it.
func (r *Registry) Validate(t *table.Table, theme, indicator, stage string) (*table.Table, error) {
	s, err := r.Lookup(theme, indicator, stage)
	if err != nil {
		return nil, err
	}
	return Validate(t, s)
}

// Keys lists every (theme, indicator, stage) in sorted order.
func (r *Registry) Keys() [][3]string {
	var out [][3]string
	for th, inds := range r.themes {
		for in, stages := range inds {
			for st := range stages {
				out = append(out, [3]string{th, in, st})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		if a[1] != b[1] {
			return a[1] < b[1]
		}
		return a[2] < b[2]
	})
	return out
}
