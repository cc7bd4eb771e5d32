package config

import (
	"errors"
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single lint finding.
//
// Path is a dotted path into the config (e.g. "storage.bucket",
// "themes.air.one.transform[1].kind").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// StepKinds are the transform kinds the transformer package can build.
var StepKinds = map[string]struct{}{
	"select":    {},
	"rename":    {},
	"drop":      {},
	"filter":    {},
	"clean":     {},
	"unpivot":   {},
	"extract":   {},
	"normalize": {},
	"coerce":    {},
	"require":   {},
	"index":     {},
}

// ValidateConfig lints a decoded Config. It does not mutate c; callers decide
// whether warnings are fatal.
func ValidateConfig(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Year) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "year",
			Message:  "year must not be empty; it prefixes every upload key",
		})
	}
	if strings.TrimSpace(c.Schemas) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "schemas",
			Message:  "no schema registry configured; every validation stage will be skipped",
		})
	}
	issues = append(issues, validateStorage(c.Storage)...)
	if c.Warehouse != nil {
		issues = append(issues, validateWarehouse("warehouse", *c.Warehouse)...)
	}
	issues = append(issues, validateRuntime(c.Runtime)...)
	issues = append(issues, validateMetrics(c.Metrics)...)

	if len(c.Themes) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "themes",
			Message:  "no themes configured",
		})
	}
	for _, ref := range c.Refs() {
		ind := c.Themes[ref.Theme][ref.Indicator]
		issues = append(issues, validateIndicator("themes."+ref.Theme+"."+ref.Indicator, ind)...)
	}
	return issues
}

// Errors joins the error-severity issues into one error, or returns nil.
func Errors(issues []Issue) error {
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	return errors.Join(errs...)
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	switch s.Kind {
	case "s3":
		if strings.TrimSpace(s.Bucket) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.bucket",
				Message:  "s3 storage requires a bucket",
			})
		}
		if s.Region == "" && s.Endpoint == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "storage.region",
				Message:  "no region or endpoint; the AWS default chain must supply one",
			})
		}
	case "local":
		if strings.TrimSpace(s.Dir) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.dir",
				Message:  "local storage requires a dir",
			})
		}
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q (want s3 or local)", s.Kind),
		})
	}
	if s.MaxRetries < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.max_retries",
			Message:  "max_retries must not be negative",
		})
	}
	return issues
}

func validateWarehouse(path string, w Warehouse) []Issue {
	var issues []Issue
	known := map[string]struct{}{
		"postgres": {},
		"mysql":    {},
		"mssql":    {},
		"sqlite":   {},
	}
	if _, ok := known[w.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  fmt.Sprintf("unknown warehouse kind %q", w.Kind),
		})
	}
	if strings.TrimSpace(w.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".dsn",
			Message:  "warehouse dsn must not be empty",
		})
	}
	if strings.TrimSpace(w.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".table",
			Message:  "warehouse table must not be empty",
		})
	}
	if w.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".batch_size",
			Message:  "batch_size must not be negative",
		})
	}
	return issues
}

func validateRuntime(r Runtime) []Issue {
	if r.Workers < 0 {
		return []Issue{{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must not be negative",
		}}
	}
	return nil
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none", "pushgateway", "datadog":
		return nil
	}
	return []Issue{{
		Severity: SeverityWarning,
		Path:     "metrics.backend",
		Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
	}}
}

func validateIndicator(path string, ind Indicator) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, p, msg string) {
		issues = append(issues, Issue{Severity: sev, Path: path + p, Message: msg})
	}

	if strings.TrimSpace(ind.Code) == "" {
		add(SeverityError, ".code", "indicator code must not be empty; it is part of the upload key")
	}

	e := ind.Extract
	if strings.TrimSpace(e.IO) == "" {
		add(SeverityError, ".extract.io", "extract.io must name a URL, s3:// URI or path")
	}
	if e.SkipRows < 0 {
		add(SeverityError, ".extract.skiprows", "skiprows must not be negative")
	}
	if e.NRows < 0 {
		add(SeverityError, ".extract.nrows", "nrows must not be negative")
	}
	switch strings.ToLower(e.Format) {
	case "", "xlsx", "csv":
	default:
		add(SeverityError, ".extract.format", fmt.Sprintf("unknown format %q (want xlsx or csv)", e.Format))
	}

	switch {
	case ind.Builtin && len(ind.Transform) > 0:
		add(SeverityError, ".transform", "builtin: true and a transform list are mutually exclusive")
	case !ind.Builtin && len(ind.Transform) == 0:
		add(SeverityWarning, ".transform", "no transform configured; the extracted table is formatted as-is")
	}
	for i, t := range ind.Transform {
		p := fmt.Sprintf(".transform[%d].kind", i)
		if strings.TrimSpace(t.Kind) == "" {
			add(SeverityError, p, "transform kind must not be empty")
			continue
		}
		if _, ok := StepKinds[t.Kind]; !ok {
			add(SeverityError, p, fmt.Sprintf("unknown transform kind %q", t.Kind))
		}
	}

	f := ind.Format
	if strings.TrimSpace(f.YearColumn) == "" {
		add(SeverityError, ".format.year_column", "year_column must not be empty")
	}
	if strings.TrimSpace(f.ValueColumn) == "" {
		add(SeverityError, ".format.value_column", "value_column must not be empty")
	}
	for i, d := range f.Disaggregations {
		if strings.TrimSpace(d.Column) == "" {
			add(SeverityError, fmt.Sprintf(".format.disaggregations[%d].column", i), "disaggregation column must not be empty")
		}
	}

	if ind.Upload.Raw && ind.Upload.RawTable {
		add(SeverityWarning, ".upload", "raw and raw_table both set; the extracted table is uploaded")
	}
	if ind.Warehouse != nil {
		issues = append(issues, validateWarehouse(path+".warehouse", *ind.Warehouse)...)
	}
	return issues
}
