// Package ddl models destination tables for the warehouse loader and renders
// CREATE TABLE statements in each backend's dialect.
package ddl

import (
	"fmt"
	"strings"
)

// Dialect is how one SQL backend spells identifiers, types and an
// idempotent CREATE TABLE.
type Dialect struct {
	Name string
	// Quote quotes one identifier segment.
	Quote func(string) string
	// Types maps each logical kind to a column type.
	Types map[Kind]string
	// Create wraps the quoted table name and column list into a statement
	// that is a no-op when the table exists. Nil uses CREATE TABLE IF NOT EXISTS.
	Create func(fqn, quotedFQN, columns string) string
}

// QuoteFQN quotes each dot-separated segment of fqn.
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, d.Quote(p))
		}
	}
	return strings.Join(out, ".")
}

// BuildCreateTableSQL renders def as:
//
//	CREATE TABLE IF NOT EXISTS <fqn> (
//	  <col> <type> [NOT NULL],
//	  ...
//	);
func (d Dialect) BuildCreateTableSQL(def TableDef) (string, error) {
	fqn := strings.TrimSpace(def.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s ddl: table name must not be empty", d.Name)
	}
	if len(def.Columns) == 0 {
		return "", fmt.Errorf("%s ddl: at least one column is required", d.Name)
	}
	cols := make([]string, 0, len(def.Columns))
	for _, c := range def.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("%s ddl: column with empty name in table %s", d.Name, fqn)
		}
		typ, ok := d.Types[c.Kind]
		if !ok {
			return "", fmt.Errorf("%s ddl: no type for %s column %s", d.Name, c.Kind, c.Name)
		}
		s := d.Quote(c.Name) + " " + typ
		if !c.Nullable {
			s += " NOT NULL"
		}
		cols = append(cols, s)
	}
	body := strings.Join(cols, ",\n  ")
	if d.Create != nil {
		return d.Create(fqn, d.QuoteFQN(fqn), body), nil
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", d.QuoteFQN(fqn), body), nil
}

// DoubleQuote quotes an identifier ANSI style, doubling embedded quotes.
func DoubleQuote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
