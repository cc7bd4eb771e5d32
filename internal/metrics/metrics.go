// Package metrics records operational metrics for indicator runs behind a
// small backend-agnostic interface.
//
// A global backend defaults to a no-op, so instrumented code is always safe
// to call. Concrete systems live in subpackages (prompush, datadog) and are
// installed once at startup with SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by this package.
const (
	StepTotal       = "oif_step_total"
	StepDuration    = "oif_step_duration_seconds"
	RowsTotal       = "oif_rows_total"
	UploadBytes     = "oif_upload_bytes_total"
	IndicatorsTotal = "oif_indicators_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordStep counts one execution of a pipeline stage for an indicator
// ("air/one") and observes its duration.
func RecordStep(indicator, step string, err error, d time.Duration) {
	lbls := Labels{
		"indicator": indicator,
		"step":      step,
		"status":    status(err),
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds delta rows of the given kind for an indicator. Kinds are
// the stage outputs: "extracted", "transformed", "formatted", "loaded".
func RecordRow(indicator, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"indicator": indicator,
		"kind":      kind,
	})
}

// RecordUpload adds the size of one uploaded artifact ("raw" or "processed").
func RecordUpload(indicator, kind string, bytes int64) {
	if bytes <= 0 {
		return
	}
	current().IncCounter(UploadBytes, float64(bytes), Labels{
		"indicator": indicator,
		"kind":      kind,
	})
}

// RecordIndicator counts one finished indicator run.
func RecordIndicator(indicator string, err error) {
	current().IncCounter(IndicatorsTotal, 1, Labels{
		"indicator": indicator,
		"status":    status(err),
	})
}
