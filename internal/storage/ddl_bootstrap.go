package storage

import (
	"context"
	"fmt"
	"sync"

	"oif/internal/ddl"
)

var (
	ddlMu    sync.RWMutex
	dialects = map[string]ddl.Dialect{}
)

// RegisterDialect registers the DDL dialect of a backend kind.
func RegisterDialect(kind string, d ddl.Dialect) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	dialects[kind] = d
}

// DialectFor returns the dialect registered for kind.
func DialectFor(kind string) (ddl.Dialect, bool) {
	ddlMu.RLock()
	defer ddlMu.RUnlock()
	d, ok := dialects[kind]
	return d, ok
}

// EnsureTable creates def through repo unless it already exists.
func EnsureTable(ctx context.Context, kind string, repo Repository, def ddl.TableDef) error {
	d, ok := DialectFor(kind)
	if !ok {
		return fmt.Errorf("storage: no DDL dialect registered for kind %q", kind)
	}
	stmt, err := d.BuildCreateTableSQL(def)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("storage: create table %s: %w", def.FQN, err)
	}
	return nil
}
