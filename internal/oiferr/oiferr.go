// Package oiferr defines the error kinds shared by every stage of an
// indicator run. All errors carry a Kind so callers can branch with
// errors.Is against the exported sentinels without string matching:
//
//	if errors.Is(err, oiferr.ErrSchemaMismatch) { ... }
//
// Errors are local to one indicator's run; nothing here is retried.
package oiferr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error by the pipeline contract it violates.
type Kind string

const (
	// KindConfigLookup: a theme, indicator or stage is absent from configuration.
	KindConfigLookup Kind = "CONFIG_LOOKUP"
	// KindSchemaMismatch: a transform step references a column the table lacks.
	KindSchemaMismatch Kind = "SCHEMA_MISMATCH"
	// KindSchemaValidation: a table fails its declarative schema.
	KindSchemaValidation Kind = "SCHEMA_VALIDATION"
	// KindExternalIO: extraction source or upload target failed.
	KindExternalIO Kind = "EXTERNAL_IO"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrConfigLookup     = &Error{Kind: KindConfigLookup}
	ErrSchemaMismatch   = &Error{Kind: KindSchemaMismatch}
	ErrSchemaValidation = &Error{Kind: KindSchemaValidation}
	ErrExternalIO       = &Error{Kind: KindExternalIO}
)

// Error is the structured error type returned by the pipeline packages.
type Error struct {
	Kind    Kind
	Op      string // step or operation that failed, e.g. "filter", "extract"
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	head := "[" + string(e.Kind) + "]"
	if len(parts) == 0 {
		return head
	}
	return head + " " + strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// KindOf extracts the Kind from an error chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	// ValidationError and other kind-carrying types implement Is only.
	for _, s := range []*Error{ErrConfigLookup, ErrSchemaMismatch, ErrSchemaValidation, ErrExternalIO} {
		if errors.Is(err, s) {
			return s.Kind
		}
	}
	return ""
}

// ConfigLookup reports a missing configuration key. path lists the keys
// that were found before the missing one, e.g. ("theme", "air").
func ConfigLookup(what, key string, path ...string) *Error {
	msg := fmt.Sprintf("%s %q does not exist", what, key)
	if len(path) > 0 {
		msg += " in " + strings.Join(path, "/")
	}
	return &Error{
		Kind:    KindConfigLookup,
		Op:      "lookup",
		Message: msg,
		Details: map[string]any{what: key},
	}
}

// Mismatch reports that step referenced column, which is not among available.
func Mismatch(step, column string, available []string) *Error {
	cols := append([]string(nil), available...)
	sort.Strings(cols)
	return &Error{
		Kind:    KindSchemaMismatch,
		Op:      step,
		Message: fmt.Sprintf("column %q not found (have %s)", column, strings.Join(cols, ", ")),
		Details: map[string]any{"column": column},
	}
}

// Mismatchf reports a structural problem in a step's parameters, such as a
// duplicate output column.
func Mismatchf(step, format string, a ...any) *Error {
	return &Error{Kind: KindSchemaMismatch, Op: step, Message: fmt.Sprintf(format, a...)}
}

// IO wraps a transport failure.
func IO(op string, cause error) *Error {
	return &Error{Kind: KindExternalIO, Op: op, Cause: cause}
}
