package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"oif/internal/config"
	"oif/internal/ddl"
	"oif/internal/oiferr"
	"oif/internal/table"
)

func feed(n int) <-chan []any {
	in := make(chan []any, n)
	for i := 0; i < n; i++ {
		in <- []any{"1990", int64(i)}
	}
	close(in)
	return in
}

/*
TestLoadBatches_Sizes checks rows are grouped into batches of at most
batchSize and the total is the sum of what each copy reports.
*/
func TestLoadBatches_Sizes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rows, batch int
		wantSizes   []int
	}{
		{rows: 7, batch: 3, wantSizes: []int{3, 3, 1}},
		{rows: 6, batch: 3, wantSizes: []int{3, 3}},
		{rows: 2, batch: 500, wantSizes: []int{2}},
		{rows: 0, batch: 10, wantSizes: nil},
	}
	for _, tc := range tests {
		var sizes []int
		copyFn := func(_ context.Context, cols []string, rows [][]any) (int64, error) {
			if len(cols) != 2 {
				t.Errorf("cols=%v", cols)
			}
			sizes = append(sizes, len(rows))
			return int64(len(rows)), nil
		}
		total, err := LoadBatches(context.Background(), []string{"Year", "Value"}, feed(tc.rows), tc.batch, copyFn)
		if err != nil {
			t.Fatalf("rows=%d batch=%d: %v", tc.rows, tc.batch, err)
		}
		if total != int64(tc.rows) {
			t.Fatalf("total=%d; want %d", total, tc.rows)
		}
		if len(sizes) != len(tc.wantSizes) {
			t.Fatalf("rows=%d batch=%d: sizes=%v; want %v", tc.rows, tc.batch, sizes, tc.wantSizes)
		}
		for i := range sizes {
			if sizes[i] != tc.wantSizes[i] {
				t.Fatalf("sizes=%v; want %v", sizes, tc.wantSizes)
			}
		}
	}
}

func TestLoadBatches_StopsOnCopyError(t *testing.T) {
	t.Parallel()

	boom := errors.New("copy failed")
	calls := 0
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		calls++
		if calls == 2 {
			return 0, boom
		}
		return int64(len(rows)), nil
	}
	total, err := LoadBatches(context.Background(), []string{"Year", "Value"}, feed(5), 2, copyFn)
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v; want %v", err, boom)
	}
	if total != 2 || calls != 2 {
		t.Fatalf("total=%d calls=%d; want 2/2", total, calls)
	}
}

func TestLoadBatches_Arguments(t *testing.T) {
	t.Parallel()

	ok := func(context.Context, []string, [][]any) (int64, error) { return 0, nil }
	if _, err := LoadBatches(context.Background(), nil, feed(0), 0, ok); err == nil {
		t.Fatal("batchSize 0 must fail")
	}
	if _, err := LoadBatches(context.Background(), nil, feed(0), 1, nil); err == nil {
		t.Fatal("nil copyFn must fail")
	}
}

func TestLoadBatches_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := make(chan []any) // never written
	_, err := LoadBatches(ctx, []string{"c"}, in, 10, func(context.Context, []string, [][]any) (int64, error) {
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v; want context.Canceled", err)
	}
}

// memRepo records statements and rows in memory.
type memRepo struct {
	mu     sync.Mutex
	execs  []string
	rows   [][]any
	closed bool
}

func (m *memRepo) CopyFrom(_ context.Context, _ []string, rows [][]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
	return int64(len(rows)), nil
}

func (m *memRepo) Exec(_ context.Context, sql string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs = append(m.execs, sql)
	return nil
}

func (m *memRepo) Close() { m.closed = true }

func TestLoad_CreatesTableAndLoadsRows(t *testing.T) {
	repo := &memRepo{}
	Register("memtest", func(context.Context, Config) (Repository, error) { return repo, nil })
	RegisterDialect("memtest", ddl.Dialect{
		Name:  "memtest",
		Quote: ddl.DoubleQuote,
		Types: map[ddl.Kind]string{ddl.Text: "TEXT", ddl.Integer: "INT", ddl.Real: "REAL", ddl.Boolean: "BOOL"},
	})

	tbl := table.MustNew([]string{"Year", "Value"},
		[]table.Value{"1990", int64(100)},
		[]table.Value{"1991", nil},
	)
	n, err := Load(context.Background(), config.Warehouse{Kind: "memtest", Table: "air_one", AutoCreateTable: true, BatchSize: 1}, tbl)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 2 || len(repo.rows) != 2 {
		t.Fatalf("n=%d rows=%v", n, repo.rows)
	}
	if len(repo.execs) != 1 || !strings.Contains(repo.execs[0], `"Value" INT`) || strings.Contains(repo.execs[0], `"Value" INT NOT NULL`) {
		t.Fatalf("ddl=%v", repo.execs)
	}
	if !repo.closed {
		t.Fatal("repository not closed")
	}
}

func TestLoad_UnknownKindIsExternalIO(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), config.Warehouse{Kind: "nope", Table: "t"}, table.MustNew([]string{"a"}))
	if !errors.Is(err, oiferr.ErrExternalIO) || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("err=%v", err)
	}
}
