// Package server exposes the loader operations over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/nsi-loader/pkg/dictionary"
	"github.com/Sternrassler/nsi-loader/pkg/ingest"
	"github.com/Sternrassler/nsi-loader/pkg/logging"
	"github.com/Sternrassler/nsi-loader/pkg/metrics"
)

const (
	readyTimeout    = 3 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Service is the set of loader operations served over HTTP.
type Service interface {
	FetchOne(ctx context.Context, identifier string) (dictionary.DatasetResult, error)
	SaveOne(ctx context.Context, identifier string) (int, error)
	SaveConfigured(ctx context.Context) ingest.Report
	DownloadConfigured(ctx context.Context) []ingest.DownloadOutcome
}

// ReportSource returns the last recorded batch report.
type ReportSource interface {
	Last(ctx context.Context) (ingest.Report, error)
}

// Check is a readiness probe of one dependency.
type Check func(ctx context.Context) error

// Option configures a Server.
type Option func(*Server)

// WithReports serves GET /dictionary/sync/last from src. isMissing reports
// whether an error from src means "no report yet".
func WithReports(src ReportSource, isMissing func(error) bool) Option {
	return func(s *Server) {
		s.reports = src
		s.isMissing = isMissing
	}
}

// WithReadinessCheck adds a named dependency check to /ready.
func WithReadinessCheck(name string, check Check) Option {
	return func(s *Server) {
		s.checks = append(s.checks, namedCheck{name: name, check: check})
	}
}

type namedCheck struct {
	name  string
	check Check
}

// Server routes HTTP requests to the loader service.
type Server struct {
	service   Service
	reports   ReportSource
	isMissing func(error) bool
	checks    []namedCheck
	engine    *gin.Engine
	logger    zerolog.Logger
}

// New creates a server and registers its routes.
func New(service Service, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		service: service,
		logger:  logging.NewLogger(logging.ComponentServer),
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	engine.GET("/health", s.health)
	engine.GET("/ready", s.ready)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	dict := engine.Group("/dictionary")
	dict.GET("", s.fetchOne)
	dict.POST("/save", s.saveOne)
	dict.POST("/save_all", s.saveAll)
	dict.POST("/sync_all", s.saveAll)
	dict.GET("/download_all", s.downloadAll)
	dict.GET("/sync/last", s.lastReport)

	s.engine = engine
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}
