// Package datadog implements a Datadog backend for the metrics package.
//
// Counters and timings go to a DogStatsD agent. Metric names are rewritten
// from the Prometheus form to Datadog's dotted form
// (synthstream_step_duration_seconds → synthstream.step.duration_seconds) and
// labels become sorted "key:value" tags.
package datadog

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/DataDog/datadog-go/v5/statsd"

	"synthstream/internal/metrics"
)

// Config holds Datadog backend configuration.
type Config struct {
	// Addr is the DogStatsD address, "127.0.0.1:8125" or "unix:///path/to/socket".
	Addr string
	// Namespace is prefixed to every metric name.
	Namespace string
	// GlobalTags are added to every metric, e.g. "env:prod".
	GlobalTags []string
}

// Backend is a Datadog implementation of metrics.Backend.
type Backend struct {
	client statsd.ClientInterface
}

// NewBackend dials the agent described by cfg. Addr is required.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: addr is required")
	}
	opts := []statsd.Option{statsd.WithClientSideAggregation()}
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}
	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: new client: %w", err)
	}
	return &Backend{client: c}, nil
}

// IncCounter sends a Count. Fractional deltas are rounded.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Count(metricName(name), int64(math.Round(delta)), tags(labels), 1)
}

// ObserveHistogram sends a Distribution so percentiles are computed
// server-side across hosts.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Distribution(metricName(name), value, tags(labels), 1)
}

// Flush sends buffered metrics to the agent.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	if err := b.client.Flush(); err != nil {
		return fmt.Errorf("datadog: flush: %w", err)
	}
	return nil
}

// Close flushes and releases the agent connection.
func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// metricName turns "synthstream_records_total" into "synthstream.records.total".
// The unit suffix of duration metrics stays attached ("duration_seconds").
func metricName(name string) string {
	parts := strings.Split(name, "_")
	if n := len(parts); n >= 2 && parts[n-1] == "seconds" {
		parts = append(parts[:n-2], parts[n-2]+"_seconds")
	}
	return strings.Join(parts, ".")
}

func tags(l metrics.Labels) []string {
	if len(l) == 0 {
		return nil
	}
	out := make([]string, 0, len(l))
	for k, v := range l {
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}
