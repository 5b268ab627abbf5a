// Package kafka publishes each generated row as one JSON message. A producer
// is built from the sink's producer_config for every append and closed
// afterwards.
package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"synthstream/internal/batch"
	"synthstream/internal/config"
	"synthstream/internal/logging"
	"synthstream/internal/storage"
)

// producer is the subset of *kgo.Client the sink uses.
type producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// newProducer is a test hook.
var newProducer = func(opts ...kgo.Opt) (producer, error) {
	return kgo.NewClient(opts...)
}

func init() {
	storage.Register(config.KindKafka, storage.AppenderFunc(appendBatch))
}

func appendBatch(ctx context.Context, spec config.SinkSpec, b *batch.Batch, _ int) error {
	s, ok := spec.(config.KafkaSink)
	if !ok {
		return fmt.Errorf("kafka: unexpected sink spec %T", spec)
	}
	return Append(ctx, s, b)
}

// recognized producer_config keys. Anything else is logged and ignored.
var knownKeys = map[string]bool{
	"bootstrap.servers":  true,
	"brokers":            true,
	"client.id":          true,
	"acks":               true,
	"compression.type":   true,
	"linger.ms":          true,
	"enable.idempotence": true,
	"message.max.bytes":  true,
	"request.timeout.ms": true,
}

// ClientOpts translates librdkafka-style producer properties into franz-go
// options.
func ClientOpts(o config.Options) ([]kgo.Opt, error) {
	brokers := o.StringSlice("bootstrap.servers")
	if len(brokers) == 0 {
		brokers = o.StringSlice("brokers")
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf(`kafka: producer_config must set "bootstrap.servers"`)
	}
	opts := []kgo.Opt{kgo.SeedBrokers(brokers...)}

	if id := o.String("client.id", ""); id != "" {
		opts = append(opts, kgo.ClientID(id))
	}

	idempotent := o.Bool("enable.idempotence", true)
	switch acks := strings.ToLower(o.String("acks", "all")); acks {
	case "all", "-1":
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	case "1":
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()))
		idempotent = false
	case "0":
		opts = append(opts, kgo.RequiredAcks(kgo.NoAck()))
		idempotent = false
	default:
		return nil, fmt.Errorf("kafka: unsupported acks %q", acks)
	}
	if !idempotent {
		opts = append(opts, kgo.DisableIdempotentWrite())
	}

	if c := o.String("compression.type", ""); c != "" {
		codec, err := compression(c)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.ProducerBatchCompression(codec))
	}
	if o.Has("linger.ms") {
		opts = append(opts, kgo.ProducerLinger(o.Duration("linger.ms", time.Millisecond, 0)))
	}
	if n := o.Int("message.max.bytes", 0); n > 0 {
		opts = append(opts, kgo.ProducerBatchMaxBytes(int32(n)))
	}
	if o.Has("request.timeout.ms") {
		opts = append(opts, kgo.ProduceRequestTimeout(o.Duration("request.timeout.ms", time.Millisecond, 10*time.Second)))
	}

	for k := range o {
		if !knownKeys[k] {
			logging.For("kafka").Warn("ignoring producer_config key", "key", k)
		}
	}
	return opts, nil
}

func compression(name string) (kgo.CompressionCodec, error) {
	switch strings.ToLower(name) {
	case "none":
		return kgo.NoCompression(), nil
	case "gzip":
		return kgo.GzipCompression(), nil
	case "snappy":
		return kgo.SnappyCompression(), nil
	case "lz4":
		return kgo.Lz4Compression(), nil
	case "zstd":
		return kgo.ZstdCompression(), nil
	}
	return kgo.CompressionCodec{}, fmt.Errorf("kafka: unsupported compression.type %q", name)
}

// Append produces one record per row of b to s.Topic, flushes, and returns
// the first delivery error.
func Append(ctx context.Context, s config.KafkaSink, b *batch.Batch) error {
	opts, err := ClientOpts(s.ProducerConfig)
	if err != nil {
		return err
	}
	lines, err := b.NDJSON()
	if err != nil {
		return err
	}

	p, err := newProducer(opts...)
	if err != nil {
		return fmt.Errorf("kafka: new client: %w", err)
	}
	defer p.Close()

	var (
		mu       sync.Mutex
		firstErr error
		failed   int
	)
	for _, line := range lines {
		p.Produce(ctx, &kgo.Record{Topic: s.Topic, Value: line}, func(_ *kgo.Record, err error) {
			if err == nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			failed++
			if firstErr == nil {
				firstErr = err
			}
		})
	}
	if err := p.Flush(ctx); err != nil {
		return fmt.Errorf("kafka: flush: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if firstErr != nil {
		return fmt.Errorf("kafka: produce to %s: %d of %d records failed: %w", s.Topic, failed, len(lines), firstErr)
	}
	logging.For("kafka").Debug("produced records", "topic", s.Topic, "records", len(lines))
	return nil
}
