// Package ingest downloads registry dictionaries and stores them,
// one dictionary or a whole configured batch at a time.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/nsi-loader/pkg/dictionary"
	"github.com/Sternrassler/nsi-loader/pkg/logging"
)

var (
	syncOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nsi_sync_outcomes_total",
		Help: "Total per-dictionary sync outcomes by status",
	}, []string{"status"})

	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nsi_sync_duration_seconds",
		Help:    "Duration of batch sync runs in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	syncLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nsi_sync_last_run_timestamp_seconds",
		Help: "Unix time of the last completed batch sync",
	})
)

// recordTimeout bounds how long handing a report to the Recorder may take.
const recordTimeout = 5 * time.Second

// Downloader fetches a complete dictionary.
type Downloader interface {
	Download(ctx context.Context, identifier string) (dictionary.DatasetResult, error)
}

// Saver persists a dictionary atomically.
type Saver interface {
	Save(ctx context.Context, identifier string, records []dictionary.Record) (int, error)
}

// Recorder keeps finished batch reports.
type Recorder interface {
	Record(ctx context.Context, report Report) error
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder hands every finished batch report to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// Service runs downloads and saves for single dictionaries and batches.
type Service struct {
	downloader  Downloader
	saver       Saver
	recorder    Recorder
	identifiers []string
	logger      zerolog.Logger
}

// NewService creates a service. identifiers is the configured batch list.
func NewService(downloader Downloader, saver Saver, identifiers []string, opts ...Option) *Service {
	s := &Service{
		downloader:  downloader,
		saver:       saver,
		identifiers: append([]string(nil), identifiers...),
		logger:      logging.NewLogger(logging.ComponentIngest),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Identifiers returns the configured batch list.
func (s *Service) Identifiers() []string {
	return append([]string(nil), s.identifiers...)
}

// FetchOne downloads a dictionary without saving it.
func (s *Service) FetchOne(ctx context.Context, identifier string) (dictionary.DatasetResult, error) {
	return s.downloader.Download(ctx, identifier)
}

// SaveOne downloads a dictionary and stores it. Errors are returned as-is.
func (s *Service) SaveOne(ctx context.Context, identifier string) (int, error) {
	result, err := s.downloader.Download(ctx, identifier)
	if err != nil {
		return 0, err
	}
	return s.saver.Save(ctx, identifier, result.Records)
}

// SaveAll runs SaveOne for every identifier in order. A failing dictionary
// is reported in its Outcome and never stops the batch.
func (s *Service) SaveAll(ctx context.Context, identifiers []string) Report {
	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Summary:   make([]Outcome, 0, len(identifiers)),
	}

	logger := s.logger.With().Str("run_id", report.RunID).Logger()
	logger.Info().
		Int("dictionaries", len(identifiers)).
		Msg("Starting batch sync")

	for _, identifier := range identifiers {
		count, err := s.SaveOne(ctx, identifier)
		if err != nil {
			logger.Error().
				Err(err).
				Str("identifier", identifier).
				Msg("Failed to process dictionary")
			syncOutcomesTotal.WithLabelValues("error").Inc()
			report.Summary = append(report.Summary, failedOutcome(identifier, err))
			continue
		}
		syncOutcomesTotal.WithLabelValues(StatusOK).Inc()
		report.Summary = append(report.Summary, okOutcome(identifier, count))
	}

	report.Duration = time.Since(report.StartedAt)
	syncDuration.Observe(report.Duration.Seconds())
	syncLastRun.SetToCurrentTime()

	logger.Info().
		Int("dictionaries", len(report.Summary)).
		Int("failed", report.Failed()).
		Int("records", report.Saved()).
		Dur("duration", report.Duration).
		Msg("Batch sync finished")

	s.record(ctx, report)
	return report
}

// SaveConfigured runs SaveAll over the configured identifiers.
func (s *Service) SaveConfigured(ctx context.Context) Report {
	return s.SaveAll(ctx, s.identifiers)
}

// DownloadAll downloads every identifier without saving, collecting a
// record count or error per dictionary.
func (s *Service) DownloadAll(ctx context.Context, identifiers []string) []DownloadOutcome {
	out := make([]DownloadOutcome, 0, len(identifiers))
	for _, identifier := range identifiers {
		result, err := s.downloader.Download(ctx, identifier)
		if err != nil {
			out = append(out, DownloadOutcome{Identifier: identifier, Err: err})
			continue
		}
		out = append(out, DownloadOutcome{Identifier: identifier, Records: result.Len()})
	}
	return out
}

// DownloadConfigured runs DownloadAll over the configured identifiers.
func (s *Service) DownloadConfigured(ctx context.Context) []DownloadOutcome {
	return s.DownloadAll(ctx, s.identifiers)
}

func (s *Service) record(ctx context.Context, report Report) {
	if s.recorder == nil {
		return
	}

	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := s.recorder.Record(recCtx, report); err != nil {
		s.logger.Warn().
			Err(err).
			Str("run_id", report.RunID).
			Msg("Failed to record sync report")
	}
}
