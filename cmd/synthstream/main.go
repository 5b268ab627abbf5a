// Command synthstream generates synthetic tables from a YAML schema and
// either streams them into a sink or serves them over HTTP.
//
//	synthstream generate -schema people.yaml -sink sink.yaml -count 100 -batches 10 -interval 5s
//	synthstream serve -schema people.yaml -schema orders.yaml -port 8000
//	synthstream validate -schema people.yaml -sink sink.yaml
//
// Every flag falls back to a SYNTHSTREAM_* environment variable named after
// it (-max-count → SYNTHSTREAM_MAX_COUNT).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"synthstream/internal/batch"
	"synthstream/internal/config"
	"synthstream/internal/faker"
	"synthstream/internal/logging"
	"synthstream/internal/metrics"
	"synthstream/internal/metrics/datadog"
	"synthstream/internal/metrics/prompush"
	"synthstream/internal/schema"
	"synthstream/internal/server"
	"synthstream/internal/stream"

	// register every sink kind with the storage registry.
	_ "synthstream/internal/storage/all"
)

const (
	exitOK    = 0
	exitRun   = 1
	exitUsage = 2
)

// errUsage marks errors caused by bad flags or configuration.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	var err error
	switch args[0] {
	case "generate":
		err = runGenerate(ctx, args[1:], stderr)
	case "serve":
		err = runServe(ctx, args[1:], stderr)
	case "validate":
		err = runValidate(ctx, args[1:], stdout, stderr)
	case "-h", "--help", "help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return exitUsage
	}

	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)
		return exitUsage
	case errors.Is(err, context.Canceled):
		return exitOK
	default:
		fmt.Fprintln(stderr, err)
		return exitRun
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: synthstream <command> [flags]

commands:
  generate   stream generated batches into a sink
  serve      serve generated rows over HTTP
  validate   lint schema and sink files and exit

run "synthstream <command> -h" for the flags of a command.`)
}

// common holds the flags shared by every command.
type common struct {
	verbose        bool
	metricsBackend string
	pushgatewayURL string
	statsdAddr     string
	job            string
	seed           uint64
}

func (c *common) register(fs *flag.FlagSet) {
	fs.BoolVar(&c.verbose, "v", envBool("V", false), "enable debug logs")
	fs.StringVar(&c.metricsBackend, "metrics-backend", envString("METRICS_BACKEND", "none"), "metrics backend: none, pushgateway, prometheus (serve only) or datadog")
	fs.StringVar(&c.pushgatewayURL, "pushgateway-url", envString("PUSHGATEWAY_URL", "http://localhost:9091"), "Pushgateway base URL")
	fs.StringVar(&c.statsdAddr, "statsd-addr", envString("STATSD_ADDR", "127.0.0.1:8125"), "DogStatsD address")
	fs.StringVar(&c.job, "job", envString("JOB", "synthstream"), "metrics job name")
	fs.Uint64Var(&c.seed, "seed", uint64(envInt("SEED", 0)), "random seed; 0 picks one")
}

// setupMetrics installs the selected backend and returns a flush func.
func (c *common) setupMetrics() (func(), error) {
	log := logging.For("metrics")
	var b metrics.Backend
	switch strings.ToLower(c.metricsBackend) {
	case "", "none":
		return func() {}, nil
	case "pushgateway":
		pb, err := prompush.NewBackend(c.job, c.pushgatewayURL)
		if err != nil {
			return nil, err
		}
		b = pb
	case "datadog":
		db, err := datadog.NewBackend(datadog.Config{
			Addr:       c.statsdAddr,
			GlobalTags: []string{"job:" + c.job},
		})
		if err != nil {
			return nil, err
		}
		b = db
	default:
		return nil, fmt.Errorf("%w: unknown metrics backend %q", errUsage, c.metricsBackend)
	}
	log.Info("metrics enabled", "backend", c.metricsBackend, "job", c.job)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("flush failed", "err", err)
		}
	}, nil
}

func runGenerate(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	var (
		schemaPath = fs.String("schema", envString("SCHEMA", ""), "table schema YAML (local path, s3:// or gs://)")
		sinkPath   = fs.String("sink", envString("SINK", ""), "sink YAML (local path, s3:// or gs://)")
		count      = fs.String("count", envString("COUNT", "100"), "rows per batch")
		batches    = fs.Int("batches", envInt("BATCHES", 0), "number of batches; 0 streams until interrupted")
		strict     = fs.Bool("strict", envBool("STRICT", false), "fail on the first field that cannot be generated")
	)
	interval := durationValue(envDuration("INTERVAL", 5*time.Second))
	fs.Var(&interval, "interval", "pause between batches (duration or seconds)")
	if err := fs.Parse(args); err != nil {
		return usageErr(err)
	}
	logging.Setup(c.verbose)

	if *schemaPath == "" || *sinkPath == "" {
		return fmt.Errorf("%w: generate needs -schema and -sink", errUsage)
	}
	n, err := batch.ParseCount(*count)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if interval < 0 {
		return fmt.Errorf("%w: -interval must not be negative", errUsage)
	}

	res := faker.New(c.seed)
	t, err := loadTable(ctx, *schemaPath, res.Knows)
	if err != nil {
		return err
	}
	sink, err := config.LoadSink(ctx, *sinkPath)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := report(config.ValidateSink(sink.Spec)); err != nil {
		return err
	}

	flush, err := c.setupMetrics()
	if err != nil {
		return err
	}
	defer flush()

	start := time.Now()
	sum, err := stream.New(batch.NewGenerator(res)).Run(ctx, t, sink.Spec, stream.Options{
		Count:      n,
		NumBatches: *batches,
		Interval:   time.Duration(interval),
		Strict:     *strict,
	})
	slog.Info("generate done",
		"session", sum.Session,
		"batches", sum.Batches,
		"rows", sum.Rows,
		"elapsed", time.Since(start).Truncate(time.Millisecond),
	)
	return err
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	var schemas stringList
	fs.Var(&schemas, "schema", "table schema YAML; repeat for more tables (SYNTHSTREAM_SCHEMA takes a comma list)")
	var (
		title     = fs.String("title", envString("TITLE", "Synthetic Data API"), "API title")
		desc      = fs.String("description", envString("DESCRIPTION", "Serves synthetic data generated from table schemas"), "API description")
		version   = fs.String("version", envString("VERSION", "1.0.0"), "API version")
		host      = fs.String("host", envString("HOST", "0.0.0.0"), "listen host")
		port      = fs.Int("port", envInt("PORT", 8000), "listen port")
		strict    = fs.Bool("strict", envBool("STRICT", false), "fail requests on the first field that cannot be generated")
		maxCount  = fs.Int("max-count", envInt("MAX_COUNT", server.DefaultMaxCount), "upper bound for ?count")
		rateLimit = fs.Float64("rate-limit", envFloat("RATE_LIMIT", 0), "requests per second; 0 disables limiting")
		burst     = fs.Int("burst", envInt("BURST", 10), "rate limiter burst")
	)
	if err := fs.Parse(args); err != nil {
		return usageErr(err)
	}
	logging.Setup(c.verbose)

	if v := envString("SCHEMA", ""); len(schemas) == 0 && v != "" {
		schemas = strings.Split(v, ",")
	}
	if len(schemas) == 0 {
		return fmt.Errorf("%w: serve needs at least one -schema", errUsage)
	}
	if *maxCount <= 0 {
		return fmt.Errorf("%w: -max-count must be positive", errUsage)
	}

	res := faker.New(c.seed)
	var tables []schema.Table
	for _, p := range schemas {
		t, err := loadTable(ctx, p, res.Knows)
		if err != nil {
			return err
		}
		tables = append(tables, t)
	}

	cfg := server.Config{
		Title:       *title,
		Description: *desc,
		Version:     *version,
		Strict:      *strict,
		MaxCount:    *maxCount,
		RateLimit:   *rateLimit,
		Burst:       *burst,
	}
	if strings.EqualFold(c.metricsBackend, "prometheus") {
		b, err := prompush.NewScrapeBackend(c.job)
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
		cfg.Gatherer = b.Gatherer()
	} else {
		flush, err := c.setupMetrics()
		if err != nil {
			return err
		}
		defer flush()
	}

	srv, err := server.New(ctx, cfg, batch.NewGenerator(res), tables)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, net.JoinHostPort(*host, strconv.Itoa(*port)))
}

func runValidate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var schemas stringList
	fs.Var(&schemas, "schema", "table schema YAML; repeatable")
	sinkPath := fs.String("sink", "", "sink YAML")
	verbose := fs.Bool("v", false, "enable debug logs")
	if err := fs.Parse(args); err != nil {
		return usageErr(err)
	}
	logging.Setup(*verbose)

	if len(schemas) == 0 && *sinkPath == "" {
		return fmt.Errorf("%w: validate needs -schema or -sink", errUsage)
	}

	res := faker.New(0)
	for _, p := range schemas {
		if _, err := loadTable(ctx, p, res.Knows); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "schema %s: ok\n", p)
	}
	if *sinkPath != "" {
		sink, err := config.LoadSink(ctx, *sinkPath)
		if err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		if err := report(config.ValidateSink(sink.Spec)); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "sink %s (%s): ok\n", *sinkPath, sink.Spec.Kind())
	}
	return nil
}

// loadTable reads and lints a schema. Lint errors are usage errors.
func loadTable(ctx context.Context, path string, knows func(string) bool) (schema.Table, error) {
	t, err := schema.Load(ctx, path)
	if err != nil {
		return schema.Table{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := report(config.ValidateTable(t, knows)); err != nil {
		return schema.Table{}, fmt.Errorf("%w (%s)", err, path)
	}
	return t, nil
}

// report logs every issue and returns a usage error when any is an error.
func report(issues []config.Issue) error {
	log := logging.For("config")
	for _, iss := range issues {
		if iss.Severity == config.SeverityError {
			log.Error(iss.Message, "path", iss.Path)
		} else {
			log.Warn(iss.Message, "path", iss.Path)
		}
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("%w: configuration is invalid", errUsage)
	}
	return nil
}

func usageErr(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %v", errUsage, err)
}
