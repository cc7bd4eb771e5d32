// Package prompush pushes run metrics to a Prometheus Pushgateway.
//
// A batch run has no scrape endpoint, so everything is collected in a
// private registry and pushed on Flush under the job grouping key.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"oif/internal/metrics"
)

// DefaultJob groups pushes when no job name is given.
const DefaultJob = "oif"

// vec is a collector together with the label keys it is partitioned by.
type vec[T any] struct {
	v    T
	keys []string
}

func (x vec[T]) values(l metrics.Labels) []string {
	out := make([]string, len(x.keys))
	for i, k := range x.keys {
		out[i] = l[k]
	}
	return out
}

// Backend implements metrics.Backend on a Prometheus registry.
type Backend struct {
	url string
	job string
	reg *prometheus.Registry

	counters  map[string]vec[*prometheus.CounterVec]
	summaries map[string]vec[*prometheus.SummaryVec]
}

var (
	stepKeys      = []string{"indicator", "step", "status"}
	artifactKeys  = []string{"indicator", "kind"}
	indicatorKeys = []string{"indicator", "status"}
)

// NewBackend registers the oif collectors for a push to gatewayURL.
func NewBackend(job, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if job == "" {
		job = DefaultJob
	}
	b := &Backend{
		url:       gatewayURL,
		job:       job,
		reg:       prometheus.NewRegistry(),
		counters:  map[string]vec[*prometheus.CounterVec]{},
		summaries: map[string]vec[*prometheus.SummaryVec]{},
	}

	counter := func(name, help string, keys []string) {
		b.counters[name] = vec[*prometheus.CounterVec]{
			v:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, keys),
			keys: keys,
		}
	}
	counter(metrics.StepTotal, "Pipeline stage executions by indicator, step and status.", stepKeys)
	counter(metrics.RowsTotal, "Rows out of each stage (extracted, transformed, formatted, loaded).", artifactKeys)
	counter(metrics.UploadBytes, "Bytes written to object storage per artifact kind.", artifactKeys)
	counter(metrics.IndicatorsTotal, "Finished indicator runs by status.", indicatorKeys)
	b.summaries[metrics.StepDuration] = vec[*prometheus.SummaryVec]{
		v: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Pipeline stage duration in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, stepKeys),
		keys: stepKeys,
	}

	for name, c := range b.counters {
		if err := b.reg.Register(c.v); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	for name, s := range b.summaries {
		if err := b.reg.Register(s.v); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

// IncCounter adds delta to a known counter; unknown names are dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if c, ok := b.counters[name]; ok {
		c.v.WithLabelValues(c.values(labels)...).Add(delta)
	}
}

// ObserveHistogram records value on a known summary.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if s, ok := b.summaries[name]; ok {
		s.v.WithLabelValues(s.values(labels)...).Observe(value)
	}
}

// Gatherer exposes the registry, mainly for tests.
func (b *Backend) Gatherer() prometheus.Gatherer { return b.reg }

// Flush replaces the job's metric group on the Pushgateway.
func (b *Backend) Flush() error {
	if err := push.New(b.url, b.job).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.url, err)
	}
	return nil
}
