package main

import (
	"log"

	"oif/internal/config"
	"oif/internal/metrics"
	"oif/internal/metrics/datadog"
	"oif/internal/metrics/prompush"
)

// setupMetrics installs the backend chosen by flag, then config. It returns
// a function that flushes the backend at exit. A backend that fails to
// initialize leaves metrics disabled.
func setupMetrics(m config.Metrics, o options) func() {
	name := pick(o.metricsBackend, m.Backend)
	job := pick(m.Job, "oif")

	var b metrics.Backend
	switch name {
	case "pushgateway":
		url := pick(o.pushgatewayURL, m.PushgatewayURL, "http://localhost:9091")
		pb, err := prompush.NewBackend(job, url)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", url, name, job)
		b = pb
	case "datadog":
		addr := pick(o.statsdAddr, m.StatsdAddr, "127.0.0.1:8125")
		db, err := datadog.NewBackend(datadog.Config{Addr: addr, GlobalTags: []string{"job:" + job}})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: addr=%v, backend=%v, job_name=%v", addr, name, job)
		metrics.SetBackend(db)
		return func() {
			if err := db.Close(); err != nil {
				log.Printf("metrics: close error: %v", err)
			}
		}
	case "", "none":
		return func() {}
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", name)
		return func() {}
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

// pick returns the first non-empty value.
func pick(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
