package mssql

import (
	"context"
	"fmt"

	"oif/internal/storage"
)

// Kind is the warehouse kind this package registers.
const Kind = "mssql"

// newRepository is swapped by tests that must not reach a server.
var newRepository = NewRepository

func open(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", Kind, err)
	}
	return storage.WithClose(r, closeFn), nil
}

func init() {
	storage.Register(Kind, open)
	storage.RegisterDialect(Kind, Dialect)
}
