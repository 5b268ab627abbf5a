// Package prompush implements a Prometheus backend for the metrics package.
//
// In push mode (NewBackend) collected metrics are pushed to a Pushgateway on
// Flush, which suits the short-lived generate command. In scrape mode
// (NewScrapeBackend) nothing is pushed and the registry is exposed through
// Gatherer, which the HTTP server serves on /metrics.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"synthstream/internal/metrics"
)

// Backend is a Prometheus metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091; empty in scrape mode
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec // synthstream_step_total
	stepDuration  *prometheus.SummaryVec // synthstream_step_duration_seconds
	recordCounter *prometheus.CounterVec // synthstream_records_total
	batchCounter  *prometheus.CounterVec // synthstream_batches_total
}

// NewBackend constructs a Pushgateway backend.
// jobName: the Pushgateway "job" name.
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	return newBackend(jobName, gatewayURL)
}

// NewScrapeBackend constructs a backend that is only read through Gatherer.
func NewScrapeBackend(jobName string) (*Backend, error) {
	return newBackend(jobName, "")
}

func newBackend(jobName, gatewayURL string) (*Backend, error) {
	if jobName == "" {
		jobName = "synthstream"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Total number of step executions, partitioned by step and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StepDurationSeconds,
			Help:       "Duration of steps in seconds, partitioned by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Record counts per table and kind (generated, appended, served).",
		},
		[]string{"table", "kind"},
	)
	batchCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Total number of batches appended, partitioned by sink kind.",
		},
		[]string{"sink"},
	)

	for name, c := range map[string]prometheus.Collector{
		"step counter":   stepCounter,
		"step summary":   stepDuration,
		"record counter": recordCounter,
		"batch counter":  batchCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stepCounter:   stepCounter,
		stepDuration:  stepDuration,
		recordCounter: recordCounter,
		batchCounter:  batchCounter,
	}, nil
}

// Gatherer exposes the backend's registry.
func (b *Backend) Gatherer() prometheus.Gatherer { return b.reg }

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)

	case metrics.RecordsTotal:
		if b.recordCounter == nil {
			return
		}
		b.recordCounter.WithLabelValues(labels["job"], labels["kind"]).Add(delta)

	case metrics.BatchesTotal:
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.WithLabelValues(labels["sink"]).Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway. It is a no-op in
// scrape mode.
func (b *Backend) Flush() error {
	if b.gatewayURL == "" {
		return nil
	}
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
