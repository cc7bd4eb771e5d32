// Package storage loads formatted indicator tables into a SQL warehouse.
// Backends register a Factory and a DDL dialect from their init functions;
// callers go through New and stay backend-agnostic.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a backend.
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// Repository is the write surface every backend provides.
type Repository interface {
	// CopyFrom bulk-inserts rows aligned to columns and returns the number
	// of rows the backend reports as inserted.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs one statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind, replacing any earlier one.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// Kinds lists the registered backends, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens the backend named by cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: no backend registered for kind %q (have %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Writer is the part of Repository a backend type implements itself.
type Writer interface {
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	Exec(ctx context.Context, sql string) error
}

type closing struct {
	Writer
	closeFn func()
}

func (c closing) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// WithClose pairs w with the cleanup its constructor returned.
func WithClose(w Writer, closeFn func()) Repository {
	return closing{Writer: w, closeFn: closeFn}
}
