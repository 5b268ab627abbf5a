package datadog

import (
	"testing"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synthstream/internal/metrics"
)

type recordingClient struct {
	statsd.NoOpClient
	counts  map[string]int64
	dists   map[string][]float64
	tags    [][]string
	flushed bool
	closed  bool
}

func newRecordingClient() *recordingClient {
	return &recordingClient{counts: map[string]int64{}, dists: map[string][]float64{}}
}

func (c *recordingClient) Count(name string, value int64, tags []string, rate float64) error {
	c.counts[name] += value
	c.tags = append(c.tags, tags)
	return nil
}

func (c *recordingClient) Distribution(name string, value float64, tags []string, rate float64) error {
	c.dists[name] = append(c.dists[name], value)
	return nil
}

func (c *recordingClient) Flush() error {
	c.flushed = true
	return nil
}

func (c *recordingClient) Close() error {
	c.closed = true
	return nil
}

func TestNewBackendRequiresAddr(t *testing.T) {
	t.Parallel()

	_, err := NewBackend(Config{})
	require.Error(t, err)
}

func TestBackendForwardsToClient(t *testing.T) {
	t.Parallel()

	c := newRecordingClient()
	b := &Backend{client: c}

	b.IncCounter(metrics.BatchesTotal, 1.6, metrics.Labels{"sink": "kafka", "job": "people"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.25, nil)
	require.NoError(t, b.Flush())

	assert.Equal(t, int64(2), c.counts["synthstream.batches.total"])
	assert.Equal(t, []string{"job:people", "sink:kafka"}, c.tags[0])
	assert.Equal(t, []float64{0.25}, c.dists["synthstream.step.duration_seconds"])
	assert.True(t, c.flushed)
	assert.False(t, c.closed)

	require.NoError(t, b.Close())
	assert.True(t, c.closed)
}

func TestMetricName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "synthstream.step.total", metricName(metrics.StepTotal))
	assert.Equal(t, "synthstream.records.total", metricName(metrics.RecordsTotal))
	assert.Equal(t, "synthstream.step.duration_seconds", metricName(metrics.StepDurationSeconds))
	assert.Equal(t, "plain", metricName("plain"))
}

func TestNilClientIsNoop(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.StepTotal, 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 1, nil)
	assert.NoError(t, b.Flush())
	assert.NoError(t, b.Close())
}
