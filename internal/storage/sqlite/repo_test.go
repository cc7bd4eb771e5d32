package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"oif/internal/config"
	"oif/internal/storage"
	"oif/internal/table"
)

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	got := InsertSQL("main.air_one", []string{"Year", "Value"})
	want := `INSERT INTO "main"."air_one" ("Year", "Value") VALUES (?, ?)`
	if got != want {
		t.Fatalf("got %s\nwant %s", got, want)
	}
}

/*
TestLoad_EndToEnd drives the warehouse path through the storage factory:
auto-create the table from the formatted output, stream rows in small
batches, then read them back.
*/
func TestLoad_EndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "oif.db")
	formatted := table.MustNew([]string{"Year", "Pollutant", "Value"},
		[]table.Value{"1990", "NH3", 100.0},
		[]table.Value{"2019", "NH3", 90.0},
		[]table.Value{"2019", "PM2.5", nil},
	)

	n, err := storage.Load(ctx, config.Warehouse{
		Kind: "sqlite", DSN: dsn, Table: "air_one", AutoCreateTable: true, BatchSize: 2,
	}, formatted)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 3 {
		t.Fatalf("inserted %d; want 3", n)
	}

	r, closeFn, err := NewRepository(ctx, Config{DSN: dsn, Table: "air_one"})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	var count int
	var sum float64
	if err := r.QueryRowContext(ctx, `SELECT COUNT(*), SUM("Value") FROM "air_one"`).Scan(&count, &sum); err != nil {
		t.Fatal(err)
	}
	if count != 3 || sum != 190 {
		t.Fatalf("count=%d sum=%v", count, sum)
	}

	// A second load appends to the existing table.
	if _, err := storage.Load(ctx, config.Warehouse{Kind: "sqlite", DSN: dsn, Table: "air_one", AutoCreateTable: true}, formatted); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if err := r.QueryRowContext(ctx, `SELECT COUNT(*) FROM "air_one"`).Scan(&count); err != nil || count != 6 {
		t.Fatalf("count=%d err=%v", count, err)
	}
}

func TestCopyFrom_RollsBackOnBadRow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, closeFn, err := NewRepository(ctx, Config{DSN: ":memory:", Table: "t"})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if err := r.Exec(ctx, `CREATE TABLE "t" ("a" INTEGER NOT NULL)`); err != nil {
		t.Fatal(err)
	}

	_, err = r.CopyFrom(ctx, []string{"a"}, [][]any{{int64(1)}, {nil}})
	if err == nil || !strings.Contains(err.Error(), "row 1") {
		t.Fatalf("err=%v", err)
	}
	var count int
	if err := r.QueryRowContext(ctx, `SELECT COUNT(*) FROM "t"`).Scan(&count); err != nil || count != 0 {
		t.Fatalf("count=%d err=%v; want rollback", count, err)
	}

	if _, err := r.CopyFrom(ctx, []string{"a"}, [][]any{{1, 2}}); err == nil {
		t.Fatal("expected error for row width mismatch")
	}
	if _, err := r.CopyFrom(ctx, nil, nil); err == nil {
		t.Fatal("expected error for empty columns")
	}
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatal("expected error")
	}
}
