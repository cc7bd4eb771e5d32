package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"oif/internal/config"
	"oif/internal/extract"
	"oif/internal/objectstore"
	"oif/internal/oiferr"
	"oif/internal/schema"
	"oif/internal/table"

	_ "oif/internal/storage/sqlite"
)

const emissionsCSV = "Pollutant,1990,1991\nNH3,10,20\nPM25,4,2\n"

// testConfig writes the source CSV and returns a config with one configured
// indicator (air/one) reading it, plus air/two pointing at a missing file.
func testConfig(t *testing.T, warehouse string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "emissions.csv")
	if err := os.WriteFile(src, []byte(emissionsCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	doc := fmt.Sprintf(`
year: "2022"
storage: { kind: local, dir: %q }
themes:
  air:
    one:
      code: A1
      extract: { io: %q }
      transform:
        - kind: unpivot
          options: { id: [Pollutant], var_name: Year, value_name: Emissions }
      format:
        year_column: Year
        value_column: Emissions
        disaggregations: [{ column: Pollutant }]
      upload: { raw: true }
%s
    two:
      code: A2
      extract: { io: %q }
      format: { year_column: Year, value_column: Value }
`, filepath.Join(dir, "out"), src, warehouse, filepath.Join(dir, "missing.csv"))
	cfg, err := config.Parse([]byte(doc), "yaml")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func newRunner(t *testing.T, cfg *config.Config, reg *schema.Registry) (*Runner, *objectstore.Local) {
	t.Helper()
	store, err := objectstore.NewLocal(cfg.Storage.Dir)
	if err != nil {
		t.Fatal(err)
	}
	r := New(cfg, reg, &extract.Extractor{}, &objectstore.Uploader{Store: store, Year: cfg.Year})
	return r, store
}

func stages(res Result) []string {
	out := make([]string, len(res.Stages))
	for i, s := range res.Stages {
		out[i] = s.Stage
		if s.Skipped {
			out[i] += "(skip)"
		}
	}
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "")
	r, store := newRunner(t, cfg, nil)

	res := r.Run(context.Background(), config.Ref{Theme: "air", Indicator: "one"})
	if res.Err != nil {
		t.Fatalf("Run: %v", res.Err)
	}
	want := table.MustNew([]string{"Year", "Pollutant", "Value"},
		[]table.Value{"1990", "NH3", int64(10)},
		[]table.Value{"1990", "PM25", int64(4)},
		[]table.Value{"1991", "NH3", int64(20)},
		[]table.Value{"1991", "PM25", int64(2)},
	)
	if !res.Output.Equal(want) {
		t.Fatalf("output\n%s\nwant\n%s", res.Output, want)
	}

	got := strings.Join(stages(res), ",")
	wantStages := "lookup,extract,validate_extracted(skip),transform,validate_transformed(skip),format," +
		"validate_formatted(skip),upload_raw,upload_processed,warehouse_load(skip)"
	if got != wantStages {
		t.Fatalf("stages=%s\nwant   %s", got, wantStages)
	}

	if res.Processed == nil || res.Processed.Key != "2022/A1/A1.csv" {
		t.Fatalf("processed receipt=%+v", res.Processed)
	}
	body, err := store.Get(context.Background(), "2022/A1/A1.csv")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(body), "Year,Pollutant,Value\n1990,NH3,10\n") {
		t.Fatalf("processed csv=%q", body)
	}

	if res.Raw == nil || res.Raw.Key != "2022_update/raw/A1/emissions.csv" {
		t.Fatalf("raw receipt=%+v", res.Raw)
	}
	raw, err := store.Get(context.Background(), res.Raw.Key)
	if err != nil || string(raw) != emissionsCSV {
		t.Fatalf("raw=%q err=%v", raw, err)
	}
	if res.Raw.XXH3 != objectstore.Checksum([]byte(emissionsCSV)) {
		t.Fatalf("raw checksum=%s", res.Raw.XXH3)
	}
}

/*
TestRun_RawUploadReusesDownload serves a source that changes on every
request and checks the raw artifact holds the exact bytes that were
extracted, fetched once.
*/
func TestRun_RawUploadReusesDownload(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		fmt.Fprintf(w, "Pollutant,1990,1991\nNH3,%d,20\n", n)
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(t, "")
	ind := cfg.Themes["air"]["one"]
	ind.Extract.IO = srv.URL + "/media/emissions.csv"
	cfg.Themes["air"]["one"] = ind
	r, store := newRunner(t, cfg, nil)

	res := r.Run(context.Background(), config.Ref{Theme: "air", Indicator: "one"})
	if res.Err != nil {
		t.Fatalf("Run: %v", res.Err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("source fetched %d times; want 1", got)
	}
	if res.Raw == nil || res.Raw.Key != "2022_update/raw/A1/emissions.csv" {
		t.Fatalf("raw receipt=%+v", res.Raw)
	}
	raw, err := store.Get(context.Background(), res.Raw.Key)
	if err != nil || string(raw) != "Pollutant,1990,1991\nNH3,1,20\n" {
		t.Fatalf("raw=%q err=%v", raw, err)
	}
	if v, _ := res.Output.Get(0, "Value"); v != int64(1) {
		t.Fatalf("extracted value=%#v; want 1", v)
	}
}

func TestRun_WarehouseLoad(t *testing.T) {
	t.Parallel()

	db := filepath.Join(t.TempDir(), "oif.db")
	wh := fmt.Sprintf("      warehouse: { kind: sqlite, dsn: %q, table: air_one, auto_create_table: true }", db)
	cfg := testConfig(t, wh)
	r, _ := newRunner(t, cfg, nil)

	res := r.Run(context.Background(), config.Ref{Theme: "air", Indicator: "one"})
	if res.Err != nil {
		t.Fatalf("Run: %v", res.Err)
	}
	if res.Loaded != 4 {
		t.Fatalf("Loaded=%d; want 4", res.Loaded)
	}
	last := res.Stages[len(res.Stages)-1]
	if last.Stage != StageLoad || last.Skipped || last.Err != nil {
		t.Fatalf("last stage=%+v", last)
	}
}

/*
TestRun_ValidationStopsBeforeUpload checks that a failing formatted schema
fails the run with the full violation list and nothing is uploaded.
*/
func TestRun_ValidationStopsBeforeUpload(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "")
	minimum := 5.0
	reg := schema.NewRegistry().Add("air", "one", schema.StageFormatted, &schema.Schema{
		Ordered: true,
		Columns: []schema.Column{
			{Name: "Year", Type: schema.TypeYear},
			{Name: "Pollutant", Type: schema.TypeString, Enum: []any{"NH3"}},
			{Name: "Value", Type: schema.TypeNumber, Min: &minimum},
		},
	})
	r, store := newRunner(t, cfg, reg)

	res := r.Run(context.Background(), config.Ref{Theme: "air", Indicator: "one"})
	if !errors.Is(res.Err, oiferr.ErrSchemaValidation) {
		t.Fatalf("err=%v; want schema validation", res.Err)
	}
	if StageOf(res.Err) != StageValidateFormatted {
		t.Fatalf("stage=%q", StageOf(res.Err))
	}
	var ve *schema.ValidationError
	if !errors.As(res.Err, &ve) || !ve.Has("Pollutant", schema.CheckEnum) || !ve.Has("Value", schema.CheckMin) {
		t.Fatalf("violations=%v", res.Err)
	}
	if res.Output != nil {
		t.Fatal("output must be nil on failure")
	}
	keys, err := store.List(context.Background(), "")
	if err != nil || len(keys) != 0 {
		t.Fatalf("keys=%v err=%v; want nothing uploaded", keys, err)
	}
}

func TestRun_LookupAndExtractErrors(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "")
	r, _ := newRunner(t, cfg, nil)

	tests := []struct {
		ref       config.Ref
		wantKind  error
		wantStage string
	}{
		{config.Ref{Theme: "water", Indicator: "one"}, oiferr.ErrConfigLookup, StageLookup},
		{config.Ref{Theme: "air", Indicator: "nine"}, oiferr.ErrConfigLookup, StageLookup},
		{config.Ref{Theme: "air", Indicator: "two"}, oiferr.ErrExternalIO, StageExtract},
	}
	for _, tc := range tests {
		res := r.Run(context.Background(), tc.ref)
		if !errors.Is(res.Err, tc.wantKind) {
			t.Fatalf("%s: err=%v; want %v", tc.ref, res.Err, tc.wantKind)
		}
		if got := StageOf(res.Err); got != tc.wantStage {
			t.Fatalf("%s: stage=%q; want %q", tc.ref, got, tc.wantStage)
		}
	}
}

func TestRunAll_FailureDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "")
	cfg.Runtime.Workers = 2
	r, _ := newRunner(t, cfg, nil)

	results, err := r.RunAll(context.Background(), cfg.Refs())
	if err == nil || !strings.Contains(err.Error(), "air/two") {
		t.Fatalf("err=%v; want air/two failure", err)
	}
	if len(results) != 2 {
		t.Fatalf("results=%d", len(results))
	}
	if results[0].Ref.Indicator != "one" || results[0].Err != nil || results[0].Processed == nil {
		t.Fatalf("air/one result=%+v", results[0])
	}
	if results[1].Err == nil {
		t.Fatal("air/two should fail")
	}
}

func TestRunAll_CanceledContext(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "")
	r, _ := newRunner(t, cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := r.RunAll(ctx, []config.Ref{{Theme: "air", Indicator: "one"}})
	if !errors.Is(err, context.Canceled) || !errors.Is(results[0].Err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
}

func TestRawArtifact(t *testing.T) {
	t.Parallel()

	tbl := table.MustNew([]string{"a"}, []table.Value{int64(1)})
	src := []byte("downloaded")
	tests := []struct {
		name string
		ind  config.Indicator
		want objectstore.Artifact
	}{
		{
			name: "url",
			ind:  config.Indicator{Extract: config.Extract{IO: "https://example.com/a.xlsx"}},
			want: objectstore.URL{URL: "https://example.com/a.xlsx", Body: src},
		},
		{
			name: "local path",
			ind:  config.Indicator{Extract: config.Extract{IO: "/data/a.xlsx"}, Upload: config.Upload{RawFilename: "b.xlsx"}},
			want: objectstore.FilePath{Path: "/data/a.xlsx", Filename: "b.xlsx"},
		},
		{
			name: "s3 falls back to table",
			ind:  config.Indicator{Extract: config.Extract{IO: "s3://bucket/dir/a.xlsx"}},
			want: objectstore.RawTable{Table: tbl, Filename: "a.csv"},
		},
		{
			name: "raw_table wins",
			ind:  config.Indicator{Extract: config.Extract{IO: "https://example.com/a.xlsx"}, Upload: config.Upload{RawTable: true}},
			want: objectstore.RawTable{Table: tbl, Filename: "a.csv"},
		},
	}
	for _, tc := range tests {
		got := rawArtifact(tc.ind, src, tbl)
		if fmt.Sprintf("%#v", got) != fmt.Sprintf("%#v", tc.want) {
			t.Fatalf("%s: got %#v; want %#v", tc.name, got, tc.want)
		}
	}
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	res := []Result{{
		Ref: config.Ref{Theme: "air", Indicator: "one"},
		Stages: []StageResult{
			{Stage: StageExtract, Rows: 3},
			{Stage: StageValidateExtracted, Rows: -1, Skipped: true},
			{Stage: StageTransform, Rows: -1, Err: errors.New("x")},
		},
	}}
	var buf bytes.Buffer
	if err := WriteReport(&buf, res); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines=%q", lines)
	}
	for i, want := range []string{"INDICATOR", "3", "skipped", "failed"} {
		if !strings.Contains(lines[i], want) {
			t.Fatalf("line %d=%q; want %q", i, lines[i], want)
		}
	}
}
