// Package mssql loads indicator tables into SQL Server with the
// go-mssqldb bulk copy API.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"oif/internal/ddl"
)

// Config names the server and destination table.
type Config struct {
	DSN   string
	Table string
}

// Dialect renders SQL Server DDL. SQL Server has no CREATE TABLE IF NOT
// EXISTS, so the statement is guarded by OBJECT_ID.
var Dialect = ddl.Dialect{
	Name:  "mssql",
	Quote: Ident,
	Types: map[ddl.Kind]string{
		ddl.Text:    "NVARCHAR(MAX)",
		ddl.Integer: "BIGINT",
		ddl.Real:    "FLOAT",
		ddl.Boolean: "BIT",
	},
	Create: func(fqn, quoted, columns string) string {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s (\n  %s\n);",
			strings.ReplaceAll(fqn, "'", "''"), quoted, columns)
	},
}

// Repository writes to one SQL Server table through database/sql.
type Repository struct {
	db    *sql.DB
	table string
}

// NewRepository validates the DSN, opens a pool and pings the server.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("parse dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{db: db, table: cfg.Table}, func() { db.Close() }, nil
}

// CopyFrom streams rows through a bulk-copy statement. The batch commits
// as a whole or not at all.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (n int64, err error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(r.table, mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("bulk copy into %s: %w", r.table, err)
	}
	defer stmt.Close()
	for i, row := range rows {
		if _, err = stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("bulk copy row %d: %w", i, err)
		}
	}
	// An Exec without arguments flushes the buffered rows.
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulk copy flush: %w", err)
	}
	if n, err = res.RowsAffected(); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// Exec runs sqlText outside any transaction.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// Ident wraps id in brackets, doubling any closing bracket.
func Ident(id string) string { return "[" + strings.ReplaceAll(id, "]", "]]") + "]" }
