package syncstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/nsi-loader/pkg/ingest"
	"github.com/Sternrassler/nsi-loader/pkg/logging"
)

const (
	// KeyLast holds the most recent report.
	KeyLast = "nsi:sync:last"

	// keyRunPrefix prefixes per-run report keys.
	keyRunPrefix = "nsi:sync:run:"

	// RunTTL is how long a per-run report is kept.
	RunTTL = 7 * 24 * time.Hour
)

var (
	// ErrNoReport indicates no report is stored under the requested key.
	ErrNoReport = errors.New("no sync report")

	// ErrInvalidReport indicates a stored report could not be decoded.
	ErrInvalidReport = errors.New("invalid sync report")
)

// RunKey returns the Redis key of a single run.
func RunKey(runID string) string {
	return keyRunPrefix + runID
}

// Store reads and writes sync reports in Redis.
type Store struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewStore creates a report store.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{
		redis:  redisClient,
		logger: logging.NewLogger(logging.ComponentSyncState),
	}
}

// Record stores report as the last report and under its run ID.
// It satisfies ingest.Recorder.
func (s *Store) Record(ctx context.Context, report ingest.Report) error {
	if report.RunID == "" {
		return fmt.Errorf("report has no run id")
	}

	data, err := json.Marshal(report)
	if err != nil {
		storeErrorsTotal.WithLabelValues("record").Inc()
		return fmt.Errorf("marshal report: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, KeyLast, data, 0)
	pipe.Set(ctx, RunKey(report.RunID), data, RunTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		storeErrorsTotal.WithLabelValues("record").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	reportsRecordedTotal.Inc()
	s.logger.Debug().
		Str("run_id", report.RunID).
		Int("bytes", len(data)).
		Msg("Sync report recorded")

	return nil
}

// Last returns the most recent report, or ErrNoReport.
func (s *Store) Last(ctx context.Context) (ingest.Report, error) {
	return s.get(ctx, KeyLast)
}

// Get returns the report of a specific run, or ErrNoReport once it expired.
func (s *Store) Get(ctx context.Context, runID string) (ingest.Report, error) {
	return s.get(ctx, RunKey(runID))
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func (s *Store) get(ctx context.Context, key string) (ingest.Report, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ingest.Report{}, ErrNoReport
		}
		storeErrorsTotal.WithLabelValues("get").Inc()
		return ingest.Report{}, fmt.Errorf("redis get: %w", err)
	}

	var report ingest.Report
	if err := json.Unmarshal(data, &report); err != nil {
		storeErrorsTotal.WithLabelValues("get").Inc()
		return ingest.Report{}, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	return report, nil
}

// Connect opens a Redis client from a redis:// URL and verifies it.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
