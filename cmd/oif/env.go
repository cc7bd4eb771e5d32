package main

import (
	"os"
	"strconv"
	"strings"

	"oif/internal/config"
)

// applyEnv overrides config values from OIF_* environment variables. Unset
// or invalid variables leave the config untouched.
func applyEnv(c *config.Config) {
	c.Year = getenv("OIF_YEAR", c.Year)
	c.Runtime.Workers = pickInt(getenvInt("OIF_WORKERS", 0), c.Runtime.Workers)
	c.Storage.Bucket = getenv("OIF_STORAGE_BUCKET", c.Storage.Bucket)
	c.Storage.Endpoint = getenv("OIF_STORAGE_ENDPOINT", c.Storage.Endpoint)
	c.Metrics.Backend = getenv("OIF_METRICS_BACKEND", c.Metrics.Backend)
	c.Metrics.PushgatewayURL = getenv("OIF_PUSHGATEWAY_URL", c.Metrics.PushgatewayURL)
	c.Metrics.StatsdAddr = getenv("OIF_STATSD_ADDR", c.Metrics.StatsdAddr)
}

// getenv returns the trimmed value of k, or def when unset or blank.
func getenv(k, def string) string {
	if s := strings.TrimSpace(os.Getenv(k)); s != "" {
		return s
	}
	return def
}

// getenvInt reads an int from environment, returning def when unset/invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
