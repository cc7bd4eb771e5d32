// Package config defines the typed configuration model for oif runs.
//
// One file, YAML or JSON by extension, describes every theme and indicator
// the job knows about: where its source spreadsheet lives, how it is
// transformed, how the result is laid out and where it is uploaded. The file
// is decoded once at startup into a Config and never modified afterwards;
// Lookup hands out copies of the per-indicator records.
//
// Example (trimmed):
//
//	year: "2022"
//	schemas: configs/schemas.yaml
//	storage: { kind: s3, bucket: s3-ranch-029, region: eu-west-2 }
//	themes:
//	  air:
//	    one:
//	      code: A1
//	      extract: { io: https://..., sheet_name: England API, usecols: "B:AA", skiprows: 13, nrows: 1602 }
//	      builtin: true
//	      format: { year_column: EmissionYear, value_column: Index }
package config

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
)

// Config is the top-level object decoded from a config file.
type Config struct {
	// Year is the reporting year used in upload keys, e.g. "2022".
	Year string `json:"year" yaml:"year"`

	// Schemas is the path of the schema registry file. Relative paths are
	// resolved against the config file's directory.
	Schemas string `json:"schemas" yaml:"schemas"`

	Storage   Storage    `json:"storage" yaml:"storage"`
	Warehouse *Warehouse `json:"warehouse,omitempty" yaml:"warehouse,omitempty"`
	Runtime   Runtime    `json:"runtime" yaml:"runtime"`
	Metrics   Metrics    `json:"metrics" yaml:"metrics"`

	// Themes maps theme -> indicator -> indicator configuration.
	Themes map[string]map[string]Indicator `json:"themes" yaml:"themes"`
}

// Indicator bundles everything needed to produce one indicator's CSV.
type Indicator struct {
	// Code is the indicator code used in upload keys, e.g. "A1".
	Code string `json:"code" yaml:"code"`

	Extract Extract `json:"extract" yaml:"extract"`

	// Builtin selects the transform registered in code for this
	// (theme, indicator). It is mutually exclusive with Transform.
	Builtin bool `json:"builtin" yaml:"builtin"`

	// Transform lists config-declared steps, applied in order.
	Transform []Transform `json:"transform" yaml:"transform"`

	Format    Format     `json:"format" yaml:"format"`
	Upload    Upload     `json:"upload" yaml:"upload"`
	Warehouse *Warehouse `json:"warehouse,omitempty" yaml:"warehouse,omitempty"`
}

// Extract holds the source coordinates of an indicator's raw table.
type Extract struct {
	// IO is an http(s) URL, an s3://bucket/key URI or a local path.
	IO string `json:"io" yaml:"io"`
	// SheetName selects the worksheet; empty means the first sheet.
	SheetName string `json:"sheet_name" yaml:"sheet_name"`
	// UseCols is an Excel column range ("B:AA") or list ("B,D,F:H").
	UseCols string `json:"usecols" yaml:"usecols"`
	// SkipRows is the number of rows above the header row.
	SkipRows int `json:"skiprows" yaml:"skiprows"`
	// NRows caps the data rows read after the header; 0 reads all.
	NRows int `json:"nrows" yaml:"nrows"`
	// Format is "xlsx" or "csv"; empty infers it from IO's extension.
	Format string `json:"format" yaml:"format"`
	// Headers are extra HTTP request headers for URL sources.
	Headers map[string]string `json:"headers" yaml:"headers"`
}

// Transform defines a single config-declared step.
type Transform struct {
	// Kind selects the step, e.g. "filter", "unpivot", "clean".
	Kind string `json:"kind" yaml:"kind"`

	// Options is interpreted by the selected step.
	Options Options `json:"options" yaml:"options"`
}

// Format is the Open SDG output layout of an indicator.
type Format struct {
	// YearColumn becomes the leading column, renamed YearAs (default "Year").
	YearColumn string `json:"year_column" yaml:"year_column"`
	YearAs     string `json:"year_as" yaml:"year_as"`

	// ValueColumn becomes the trailing column, renamed ValueAs (default "Value").
	ValueColumn string `json:"value_column" yaml:"value_column"`
	ValueAs     string `json:"value_as" yaml:"value_as"`

	Disaggregations []Disaggregation `json:"disaggregations" yaml:"disaggregations"`
}

// Disaggregation places Column between the year and value columns, renamed
// As when As is set.
type Disaggregation struct {
	Column string `json:"column" yaml:"column"`
	As     string `json:"as" yaml:"as"`
}

// Upload controls where an indicator's artifacts go.
type Upload struct {
	// Filename of the processed CSV; defaults to "<code>.csv".
	Filename string `json:"filename" yaml:"filename"`
	// Key overrides the processed object key entirely.
	Key string `json:"key" yaml:"key"`

	// Raw uploads the source file alongside the processed CSV.
	Raw bool `json:"raw" yaml:"raw"`
	// RawTable uploads the extracted table as CSV instead of the source file.
	RawTable    bool   `json:"raw_table" yaml:"raw_table"`
	RawFilename string `json:"raw_filename" yaml:"raw_filename"`
	RawKey      string `json:"raw_key" yaml:"raw_key"`
}

// Storage selects the object store.
type Storage struct {
	// Kind is "s3" or "local".
	Kind string `json:"kind" yaml:"kind"`

	Bucket string `json:"bucket" yaml:"bucket"`
	Region string `json:"region" yaml:"region"`
	// Endpoint is a custom S3 endpoint (MinIO, localstack).
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	PathStyle bool   `json:"path_style" yaml:"path_style"`
	// ACL is the canned ACL; empty means bucket-owner-full-control.
	ACL        string `json:"acl" yaml:"acl"`
	MaxRetries int    `json:"max_retries" yaml:"max_retries"`

	// Dir is the root directory of the "local" store.
	Dir string `json:"dir" yaml:"dir"`
}

// Warehouse configures the optional database sink for formatted tables.
type Warehouse struct {
	// Kind selects the storage backend: postgres, mssql, mysql or sqlite.
	Kind string `json:"kind" yaml:"kind"`

	// DSN is the connection string for the selected driver.
	DSN string `json:"dsn" yaml:"dsn"`

	// Table is the destination table, e.g. "public.air_one".
	Table string `json:"table" yaml:"table"`

	// AutoCreateTable creates the table from the formatted columns when
	// it does not exist yet.
	AutoCreateTable bool `json:"auto_create_table" yaml:"auto_create_table"`

	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// Runtime controls how many indicators run at once.
type Runtime struct {
	Workers int `json:"workers" yaml:"workers"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is "none", "pushgateway" or "datadog".
	Backend        string `json:"backend" yaml:"backend"`
	Job            string `json:"job" yaml:"job"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	StatsdAddr     string `json:"statsd_addr" yaml:"statsd_addr"`
}

// Ref names one indicator.
type Ref struct {
	Theme     string
	Indicator string
}

func (r Ref) String() string { return r.Theme + "/" + r.Indicator }

// Load reads and decodes a config file. Files ending in .yaml or .yml are
// YAML; everything else is JSON. The schema path is made absolute relative
// to the config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if c.Schemas != "" && !filepath.IsAbs(c.Schemas) {
		c.Schemas = filepath.Join(filepath.Dir(path), c.Schemas)
	}
	return c, nil
}

// Parse decodes config bytes; format is "yaml" or "json". Unknown fields are
// rejected so typos fail loudly.
func Parse(b []byte, format string) (*Config, error) {
	var c Config
	switch format {
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil {
			return nil, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}

// Lookup returns the configuration of one indicator. A missing theme or
// indicator is a ConfigLookup error naming the missing key.
func (c *Config) Lookup(theme, indicator string) (Indicator, error) {
	inds, ok := c.Themes[theme]
	if !ok {
		return Indicator{}, oiferr.ConfigLookup("theme", theme)
	}
	ind, ok := inds[indicator]
	if !ok {
		return Indicator{}, oiferr.ConfigLookup("indicator", indicator, theme)
	}
	return ind, nil
}

// Refs lists every configured indicator, sorted by theme then indicator.
func (c *Config) Refs() []Ref {
	var out []Ref
	for theme, inds := range c.Themes {
		for ind := range inds {
			out = append(out, Ref{Theme: theme, Indicator: ind})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Theme != out[j].Theme {
			return out[i].Theme < out[j].Theme
		}
		return out[i].Indicator < out[j].Indicator
	})
	return out
}

// WarehouseFor returns the indicator's warehouse, falling back to the global
// one. It returns nil when neither is set.
func (c *Config) WarehouseFor(ind Indicator) *Warehouse {
	if ind.Warehouse != nil {
		return ind.Warehouse
	}
	return c.Warehouse
}
