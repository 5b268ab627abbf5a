// Package server exposes generated data over HTTP.
//
// Routes:
//
//	GET /                    → service info and table list
//	GET /tables/:name        → ?count=N rows as a JSON array, keys in field order
//	GET /tables/:name/schema → column names and types of the table
//	GET /healthz             → liveness
//	GET /metrics             → Prometheus exposition (when a gatherer is set)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"synthstream/internal/batch"
	"synthstream/internal/logging"
	"synthstream/internal/metrics"
	"synthstream/internal/schema"
)

func init() { gin.SetMode(gin.ReleaseMode) }

// DefaultMaxCount caps rows per request when Config.MaxCount is unset.
const DefaultMaxCount = 1000

// Config controls the server.
type Config struct {
	Title       string
	Description string
	Version     string
	// Strict makes a field that fails to generate fail the request (and the
	// table's registration at startup).
	Strict bool
	// MaxCount clamps ?count.
	MaxCount int
	// RateLimit is requests per second across all routes; zero disables it.
	RateLimit float64
	Burst     int
	// Gatherer backs /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
}

// Generator produces batches for a table.
type Generator interface {
	Generate(ctx context.Context, t schema.Table, count int, strict bool) (*batch.Batch, error)
}

// Column describes one column of a served table.
type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type route struct {
	table   schema.Table
	columns []Column
}

// Server serves generated rows for a fixed set of tables.
type Server struct {
	cfg    Config
	gen    Generator
	routes map[string]route
	engine *gin.Engine
	log    *slog.Logger
}

// New samples one row of every table to learn its column types. Tables whose
// sample fails are logged and left out; it is an error when none remain.
func New(ctx context.Context, cfg Config, gen Generator, tables []schema.Table) (*Server, error) {
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = DefaultMaxCount
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	s := &Server{cfg: cfg, gen: gen, routes: map[string]route{}, log: logging.For("server")}

	for _, t := range tables {
		if _, dup := s.routes[t.Name]; dup {
			s.log.Error("duplicate table, skipping", "table", t.Name)
			continue
		}
		cols, err := s.sample(ctx, t)
		if err != nil {
			s.log.Error("failed to build route for table", "table", t.Name, "err", err)
			continue
		}
		s.routes[t.Name] = route{table: t, columns: cols}
	}
	if len(s.routes) == 0 {
		return nil, errors.New("server: no valid tables to serve")
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.accessLog())
	if cfg.RateLimit > 0 {
		s.engine.Use(rateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.Burst, 1))))
	}
	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	s.engine.GET("/tables/:name", s.handleTable)
	s.engine.GET("/tables/:name/schema", s.handleSchema)
	if cfg.Gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	return s, nil
}

func (s *Server) sample(ctx context.Context, t schema.Table) ([]Column, error) {
	b, err := s.gen.Generate(ctx, t, 1, s.cfg.Strict)
	if err != nil {
		return nil, err
	}
	desc := make(map[string]string, len(t.Fields))
	for _, f := range t.Fields {
		desc[f.Name] = f.Description
	}
	cols := make([]Column, len(b.Columns))
	for i, c := range b.Columns {
		cols[i] = Column{Name: c.Name, Type: c.Type.String(), Description: desc[c.Name]}
	}
	return cols, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Tables returns the served table names, sorted.
func (s *Server) Tables() []string {
	out := make([]string, 0, len(s.routes))
	for name := range s.routes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", "addr", addr, "tables", s.Tables())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"title":       s.cfg.Title,
		"description": s.cfg.Description,
		"version":     s.cfg.Version,
		"tables":      s.Tables(),
	})
}

func (s *Server) handleTable(c *gin.Context) {
	r, ok := s.routes[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "table not found"})
		return
	}
	count, err := batch.ParseCount(c.Query("count"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	count = min(count, s.cfg.MaxCount)

	start := time.Now()
	b, err := s.gen.Generate(c.Request.Context(), r.table, count, s.cfg.Strict)
	metrics.RecordStep(r.table.Name, "serve", err, time.Since(start))
	if err != nil {
		var ice *batch.InvalidCountError
		if errors.As(err, &ice) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.log.Error("generate failed", "table", r.table.Name, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	metrics.RecordRow(r.table.Name, "served", int64(b.Len()))
	c.JSON(http.StatusOK, b.Records())
}

func (s *Server) handleSchema(c *gin.Context) {
	r, ok := s.routes[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "table not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":        r.table.Name,
		"description": r.table.Description,
		"columns":     r.columns,
	})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

func rateLimit(l *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
