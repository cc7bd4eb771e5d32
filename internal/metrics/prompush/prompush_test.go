package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"oif/internal/metrics"
)

func newTestBackend(t testing.TB) *Backend {
	t.Helper()
	b, err := NewBackend("", "http://pushgateway:9091")
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend("oif", ""); err == nil {
		t.Fatal("missing gateway URL must fail")
	}
	if b := newTestBackend(t); b.job != DefaultJob {
		t.Fatalf("job=%q; want %q", b.job, DefaultJob)
	}
	b, err := NewBackend("oif-2022", "http://pushgateway:9091")
	if err != nil || b.job != "oif-2022" {
		t.Fatalf("job=%q err=%v", b.job, err)
	}
}

/*
TestIncCounter routes each metric name to its collector, picks label values
by key, and drops names the backend does not know.
*/
func TestIncCounter(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)
	b.IncCounter(metrics.StepTotal, 2, metrics.Labels{"status": "success", "indicator": "air/one", "step": "extract"})
	b.IncCounter(metrics.RowsTotal, 7, metrics.Labels{"indicator": "air/one", "kind": "formatted"})
	b.IncCounter(metrics.UploadBytes, 300, metrics.Labels{"indicator": "air/one", "kind": "raw"})
	b.IncCounter(metrics.IndicatorsTotal, 1, metrics.Labels{"indicator": "air/one", "status": "success"})
	b.IncCounter("unknown_metric", 1, nil)

	tests := []struct {
		name   string
		values []string
		want   float64
	}{
		{metrics.StepTotal, []string{"air/one", "extract", "success"}, 2},
		{metrics.RowsTotal, []string{"air/one", "formatted"}, 7},
		{metrics.UploadBytes, []string{"air/one", "raw"}, 300},
		{metrics.IndicatorsTotal, []string{"air/one", "success"}, 1},
	}
	for _, tc := range tests {
		c := b.counters[tc.name].v.WithLabelValues(tc.values...)
		if got := testutil.ToFloat64(c); got != tc.want {
			t.Fatalf("%s%v=%v; want %v", tc.name, tc.values, got, tc.want)
		}
	}
	if n, err := testutil.GatherAndCount(b.Gatherer()); err != nil || n != 4 {
		t.Fatalf("series=%d err=%v; want 4", n, err)
	}
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)
	l := metrics.Labels{"indicator": "air/three", "step": "transform", "status": "success"}
	b.ObserveHistogram(metrics.StepDuration, 0.25, l)
	b.ObserveHistogram(metrics.StepDuration, 0.75, l)
	b.ObserveHistogram("other", 9, l)

	mfs, err := b.Gatherer().Gather()
	if err != nil {
		t.Fatal(err)
	}
	var sum *dto.Summary
	for _, mf := range mfs {
		if mf.GetName() == metrics.StepDuration {
			sum = mf.GetMetric()[0].GetSummary()
		}
	}
	if sum == nil || sum.GetSampleCount() != 2 || sum.GetSampleSum() != 1.0 {
		t.Fatalf("summary=%v; want 2 samples summing to 1", sum)
	}
}

func TestFlush(t *testing.T) {
	t.Parallel()

	type pushed struct{ method, path, body string }
	got := make(chan pushed, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- pushed{r.Method, r.URL.Path, string(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b, err := NewBackend("", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	b.IncCounter(metrics.IndicatorsTotal, 1, metrics.Labels{"indicator": "air/one", "status": "success"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	p := <-got
	if p.method != http.MethodPut || !strings.Contains(p.path, "/job/oif") || p.body == "" {
		t.Fatalf("push=%+v", p)
	}
}

func TestFlush_GatewayDown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b, err := NewBackend("", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(); err == nil || !strings.Contains(err.Error(), "prompush") {
		t.Fatalf("err=%v", err)
	}
}

func BenchmarkIncCounterStep(b *testing.B) {
	be := newTestBackend(b)
	l := metrics.Labels{"indicator": "air/one", "step": "extract", "status": "success"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		be.IncCounter(metrics.StepTotal, 1, l)
	}
}
