// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the generator, the sinks and the stream loop.
//
// It exposes a narrow Backend interface (counters and timings) and a global,
// pluggable backend that defaults to a no-op implementation, so recording is
// always safe even when nothing is configured. Concrete systems live in
// subpackages (prompush, datadog).
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal           = "synthstream_step_total"
	StepDurationSeconds = "synthstream_step_duration_seconds"
	RecordsTotal        = "synthstream_records_total"
	BatchesTotal        = "synthstream_batches_total"
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

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
// It is meant to be called once from main before any recording starts.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures latency and success/failure of one step ("generate",
// "append") of a job. The job is usually the table name.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter for the given job and kind,
// e.g. "generated", "appended" or "served".
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments a batch-level counter for the given job and sink.
func RecordBatches(job, sink string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job":  job,
		"sink": sink,
	})
}
