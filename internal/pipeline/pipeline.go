// Package pipeline runs indicators end to end: extract, validate, transform,
// format, upload and, when configured, load into a warehouse.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"oif/internal/config"
	"oif/internal/extract"
	"oif/internal/format"
	"oif/internal/indicator"
	"oif/internal/metrics"
	"oif/internal/objectstore"
	"oif/internal/schema"
	"oif/internal/storage"
	"oif/internal/table"
)

// Stage names, in execution order. They label metrics and the stage report.
const (
	StageLookup              = "lookup"
	StageExtract             = "extract"
	StageValidateExtracted   = "validate_" + schema.StageExtracted
	StageTransform           = "transform"
	StageValidateTransformed = "validate_" + schema.StageTransformed
	StageFormat              = "format"
	StageValidateFormatted   = "validate_" + schema.StageFormatted
	StageUploadRaw           = "upload_raw"
	StageUploadProcessed     = "upload_processed"
	StageLoad                = "warehouse_load"
)

// StageResult records one executed or skipped stage.
type StageResult struct {
	Stage    string
	Duration time.Duration
	// Rows is the row count of the stage's output table, -1 when the stage
	// does not produce one.
	Rows    int
	Skipped bool
	Err     error
}

// Result is the outcome of one indicator run. On failure Output is nil and
// Err names the failing stage.
type Result struct {
	Ref       config.Ref
	Stages    []StageResult
	Output    *table.Table
	Raw       *objectstore.Receipt
	Processed *objectstore.Receipt
	Loaded    int64
	Err       error
}

// LoadFunc loads a formatted table into a warehouse.
type LoadFunc func(ctx context.Context, w config.Warehouse, t *table.Table) (int64, error)

// Runner executes indicators against one configuration. It is safe for
// concurrent use once built.
type Runner struct {
	Config    *config.Config
	Schemas   *schema.Registry // nil skips every validation stage
	Extractor *extract.Extractor
	Uploader  *objectstore.Uploader // nil skips uploads
	Load      LoadFunc              // nil uses storage.Load
	Workers   int
	RunID     string
	Verbose   bool
}

// New builds a Runner with a fresh run ID. Workers defaults to
// cfg.Runtime.Workers, then 1.
func New(cfg *config.Config, reg *schema.Registry, ex *extract.Extractor, up *objectstore.Uploader) *Runner {
	w := cfg.Runtime.Workers
	if w <= 0 {
		w = 1
	}
	return &Runner{
		Config:    cfg,
		Schemas:   reg,
		Extractor: ex,
		Uploader:  up,
		Load:      storage.Load,
		Workers:   w,
		RunID:     uuid.NewString(),
	}
}

// stepError tags an error with the stage it happened in.
type stepError struct {
	stage string
	err   error
}

func (e *stepError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

// StageOf returns the stage a Run error happened in, or "".
func StageOf(err error) string {
	var se *stepError
	if errors.As(err, &se) {
		return se.stage
	}
	return ""
}

// run is the per-indicator state threaded through the stages.
type run struct {
	r   *Runner
	ref config.Ref
	res *Result
}

func (x *run) step(stage string, fn func() (*table.Table, error)) (*table.Table, error) {
	start := time.Now()
	t, err := fn()
	d := time.Since(start)
	rows := -1
	if t != nil {
		rows = t.Len()
	}
	x.res.Stages = append(x.res.Stages, StageResult{Stage: stage, Duration: d, Rows: rows, Err: err})
	metrics.RecordStep(x.ref.String(), stage, err, d)
	if err != nil {
		log.Printf("pipeline: run=%s indicator=%s stage=%s status=failure err=%v", x.r.RunID, x.ref, stage, err)
		return nil, &stepError{stage: stage, err: err}
	}
	if x.r.Verbose {
		log.Printf("pipeline: run=%s indicator=%s stage=%s rows=%d took=%s", x.r.RunID, x.ref, stage, rows, d.Truncate(time.Millisecond))
	}
	return t, nil
}

func (x *run) skip(stage, why string) {
	x.res.Stages = append(x.res.Stages, StageResult{Stage: stage, Rows: -1, Skipped: true})
	log.Printf("pipeline: run=%s indicator=%s stage=%s skipped: %s", x.r.RunID, x.ref, stage, why)
}

func (x *run) validate(stage, schemaStage string, t *table.Table) (*table.Table, error) {
	s, ok := x.r.Schemas.Find(x.ref.Theme, x.ref.Indicator, schemaStage)
	if !ok {
		x.skip(stage, "no "+schemaStage+" schema")
		return t, nil
	}
	return x.step(stage, func() (*table.Table, error) { return schema.Validate(t, s) })
}

// Run executes every stage of one indicator. It never panics on bad input;
// all failures are reported in Result.Err.
func (r *Runner) Run(ctx context.Context, ref config.Ref) Result {
	res := Result{Ref: ref}
	err := r.run(ctx, ref, &res)
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", ref, err)
		res.Output = nil
	}
	metrics.RecordIndicator(ref.String(), err)
	return res
}

func (r *Runner) run(ctx context.Context, ref config.Ref, res *Result) error {
	x := &run{r: r, ref: ref, res: res}
	ind := config.Indicator{}

	_, err := x.step(StageLookup, func() (*table.Table, error) {
		var err error
		ind, err = r.Config.Lookup(ref.Theme, ref.Indicator)
		return nil, err
	})
	if err != nil {
		return err
	}
	chain, err := indicator.Chain(ref, ind)
	if err != nil {
		return &stepError{stage: StageLookup, err: err}
	}

	params := extract.FromConfig(ind.Extract)
	var source []byte
	extracted, err := x.step(StageExtract, func() (*table.Table, error) {
		b, err := r.Extractor.Read(ctx, params)
		if err != nil {
			return nil, err
		}
		source = b
		return extract.Parse(b, params)
	})
	if err != nil {
		return err
	}
	metrics.RecordRow(ref.String(), "extracted", int64(extracted.Len()))

	if _, err := x.validate(StageValidateExtracted, schema.StageExtracted, extracted); err != nil {
		return err
	}

	transformed, err := x.step(StageTransform, func() (*table.Table, error) { return chain.Apply(extracted) })
	if err != nil {
		return err
	}
	metrics.RecordRow(ref.String(), "transformed", int64(transformed.Len()))

	if _, err := x.validate(StageValidateTransformed, schema.StageTransformed, transformed); err != nil {
		return err
	}

	formatted, err := x.step(StageFormat, func() (*table.Table, error) {
		return format.Apply(transformed, format.FromConfig(ind.Format))
	})
	if err != nil {
		return err
	}
	metrics.RecordRow(ref.String(), "formatted", int64(formatted.Len()))

	if _, err := x.validate(StageValidateFormatted, schema.StageFormatted, formatted); err != nil {
		return err
	}

	if err := r.upload(ctx, x, ind, source, extracted, formatted); err != nil {
		return err
	}

	if w := r.Config.WarehouseFor(ind); w != nil {
		load := r.Load
		if load == nil {
			load = storage.Load
		}
		if _, err := x.step(StageLoad, func() (*table.Table, error) {
			n, err := load(ctx, *w, formatted)
			res.Loaded = n
			return nil, err
		}); err != nil {
			return err
		}
		metrics.RecordRow(ref.String(), "loaded", res.Loaded)
	} else {
		x.skip(StageLoad, "no warehouse configured")
	}

	res.Output = formatted
	return nil
}

func (r *Runner) upload(ctx context.Context, x *run, ind config.Indicator, source []byte, extracted, formatted *table.Table) error {
	if r.Uploader == nil {
		x.skip(StageUploadRaw, "no object store")
		x.skip(StageUploadProcessed, "no object store")
		return nil
	}
	up := ind.Upload

	if up.Raw || up.RawTable {
		a := rawArtifact(ind, source, extracted)
		var rc objectstore.Receipt
		if _, err := x.step(StageUploadRaw, func() (*table.Table, error) {
			var err error
			rc, err = r.Uploader.Upload(ctx, a, objectstore.Target{Code: ind.Code, Raw: true, Key: up.RawKey})
			return nil, err
		}); err != nil {
			return err
		}
		x.res.Raw = &rc
		metrics.RecordUpload(x.ref.String(), "raw", int64(rc.Bytes))
		log.Printf("pipeline: indicator=%s raw key=%s size=%s xxh3=%s", x.ref, rc.Key, humanize.Bytes(uint64(rc.Bytes)), rc.XXH3)
	} else {
		x.skip(StageUploadRaw, "raw upload not requested")
	}

	filename := up.Filename
	if filename == "" {
		filename = ind.Code + ".csv"
	}
	var rc objectstore.Receipt
	if _, err := x.step(StageUploadProcessed, func() (*table.Table, error) {
		var err error
		rc, err = r.Uploader.Upload(ctx,
			objectstore.RawTable{Table: formatted, Filename: filename},
			objectstore.Target{Code: ind.Code, Key: up.Key})
		return nil, err
	}); err != nil {
		return err
	}
	x.res.Processed = &rc
	metrics.RecordUpload(x.ref.String(), "processed", int64(rc.Bytes))
	log.Printf("pipeline: indicator=%s processed key=%s size=%s xxh3=%s", x.ref, rc.Key, humanize.Bytes(uint64(rc.Bytes)), rc.XXH3)
	return nil
}

// rawArtifact picks what the raw upload stores: the source file (the bytes
// extraction downloaded for a URL, the file itself for a local path), or the
// extracted table as CSV when raw_table is set or the source cannot be
// re-read directly (s3://).
func rawArtifact(ind config.Indicator, source []byte, extracted *table.Table) objectstore.Artifact {
	up := ind.Upload
	loc := strings.TrimSpace(ind.Extract.IO)
	u, err := url.Parse(loc)
	scheme := ""
	if err == nil && len(u.Scheme) > 1 {
		scheme = u.Scheme
	}

	if !up.RawTable {
		switch scheme {
		case "http", "https":
			var h http.Header
			if len(ind.Extract.Headers) > 0 {
				h = http.Header{}
				for k, v := range ind.Extract.Headers {
					h.Set(k, v)
				}
			}
			return objectstore.URL{URL: loc, Filename: up.RawFilename, Headers: h, Body: source}
		case "":
			return objectstore.FilePath{Path: loc, Filename: up.RawFilename}
		case "file":
			return objectstore.FilePath{Path: u.Path, Filename: up.RawFilename}
		}
	}

	name := up.RawFilename
	if name == "" {
		base := path.Base(filepath.ToSlash(loc))
		name = strings.TrimSuffix(base, path.Ext(base)) + ".csv"
	}
	return objectstore.RawTable{Table: extracted, Filename: name}
}

// RunAll runs refs with at most r.Workers indicators in flight. A failing
// indicator does not stop the others. Results come back in refs order; the
// error joins every failure.
func (r *Runner) RunAll(ctx context.Context, refs []config.Ref) ([]Result, error) {
	results := make([]Result, len(refs))
	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Ref: ref, Err: fmt.Errorf("%s: %w", ref, err)}
				return nil
			}
			results[i] = r.Run(ctx, ref)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	log.Printf("pipeline: run=%s indicators=%d failed=%d", r.RunID, len(refs), len(errs))
	return results, errors.Join(errs...)
}
