package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"oif/internal/config"
	"oif/internal/ddl"
	"oif/internal/oiferr"
	"oif/internal/table"
)

// DefaultBatchSize is used when a warehouse config leaves batch_size unset.
const DefaultBatchSize = 500

// CopyFn is a backend's bulk insert: it inserts rows aligned to columns and
// returns the number of rows reported as inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches groups rows from in into batches of batchSize and hands each
// batch to copyFn. It stops at the first copy error or when ctx is done and
// returns the rows inserted so far. Each flush logs its throughput.
func LoadBatches(ctx context.Context, columns []string, in <-chan []any, batchSize int, copyFn CopyFn) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("loader: batch size %d must be positive", batchSize)
	}
	if copyFn == nil {
		return 0, fmt.Errorf("loader: nil copy function")
	}

	var total int64
	batch := make([][]any, 0, batchSize)
	start := time.Now()
	flushes := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		t0 := time.Now()
		n, err := copyFn(ctx, columns, batch)
		total += n
		size := len(batch)
		batch = batch[:0]
		if err != nil {
			log.Printf("loader: copy failed batch=%d rows=%d total=%d err=%v", flushes+1, size, total, err)
			return err
		}
		flushes++
		took := time.Since(t0)
		rps := 0.0
		if took > 0 {
			rps = float64(n) / took.Seconds()
		}
		log.Printf("loader: batch=%d rows=%d total=%d rps=%.0f elapsed=%s",
			flushes, n, total, rps, time.Since(start).Truncate(time.Millisecond))
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case row, ok := <-in:
			if !ok {
				return total, flush()
			}
			batch = append(batch, row)
			if len(batch) == batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}

// LoadTable streams the rows of t through LoadBatches into repo.
func LoadTable(ctx context.Context, repo Repository, t *table.Table, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows := make(chan []any, batchSize)
	go func() {
		defer close(rows)
		for r := 0; r < t.Len(); r++ {
			select {
			case rows <- t.Row(r):
			case <-ctx.Done():
				return
			}
		}
	}()
	return LoadBatches(ctx, t.Columns(), rows, batchSize, repo.CopyFrom)
}

// Load opens the warehouse described by w, creates the destination table
// when w.AutoCreateTable is set, and loads t. It returns the rows inserted.
// Every failure is an ExternalIO error.
func Load(ctx context.Context, w config.Warehouse, t *table.Table) (int64, error) {
	repo, err := New(ctx, Config{Kind: w.Kind, DSN: w.DSN, Table: w.Table})
	if err != nil {
		return 0, oiferr.IO("open "+w.Kind+" warehouse", err)
	}
	defer repo.Close()

	if w.AutoCreateTable {
		if err := EnsureTable(ctx, w.Kind, repo, ddl.Infer(w.Table, t)); err != nil {
			return 0, oiferr.IO("create "+w.Table, err)
		}
	}
	n, err := LoadTable(ctx, repo, t, w.BatchSize)
	if err != nil {
		return n, oiferr.IO("load "+w.Table, err)
	}
	log.Printf("loader: kind=%s table=%s rows=%d", w.Kind, w.Table, n)
	return n, nil
}
