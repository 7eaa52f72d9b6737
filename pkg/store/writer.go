package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sternrassler/nsi-loader/pkg/dictionary"
	"github.com/Sternrassler/nsi-loader/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	recordsSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nsi_records_saved_total",
		Help: "Total dictionary records committed to the store",
	})

	saveFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nsi_save_failures_total",
		Help: "Total failed dictionary saves by operation",
	}, []string{"op"})

	saveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nsi_save_duration_seconds",
		Help:    "Duration of dictionary save transactions in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

const insertRecordSQL = `INSERT INTO dictionary_records (identifier, record) VALUES ($1, $2::jsonb)`

const countRecordsSQL = `SELECT COUNT(*) FROM dictionary_records WHERE identifier = $1`

// Writer stores dictionary records, one transaction per Save call.
type Writer struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewWriter creates a new writer on top of an open database.
func NewWriter(db *sql.DB) *Writer {
	if db == nil {
		panic("database cannot be nil")
	}
	return &Writer{
		db:     db,
		logger: logging.NewLogger(logging.ComponentStore),
	}
}

// Save inserts all records for identifier in a single transaction and
// returns the number inserted. On any failure nothing is persisted.
// Existing rows for the identifier are left untouched; repeated saves append.
func (w *Writer) Save(ctx context.Context, identifier string, records []dictionary.Record) (int, error) {
	start := time.Now()
	defer func() {
		saveDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, w.fail(identifier, OpBegin, -1, err)
	}

	count := 0
	for i, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			w.rollback(tx, identifier)
			return 0, w.fail(identifier, OpMarshal, i, err)
		}

		if _, err := tx.ExecContext(ctx, insertRecordSQL, identifier, string(payload)); err != nil {
			w.rollback(tx, identifier)
			return 0, w.fail(identifier, OpInsert, i, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, w.fail(identifier, OpCommit, -1, err)
	}

	recordsSavedTotal.Add(float64(count))
	w.logger.Info().
		Str("identifier", identifier).
		Int("records", count).
		Dur("duration", time.Since(start)).
		Msg("Records saved")

	return count, nil
}

// Count returns the number of stored rows for identifier.
func (w *Writer) Count(ctx context.Context, identifier string) (int, error) {
	var n int
	if err := w.db.QueryRowContext(ctx, countRecordsSQL, identifier).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records for %s: %w", identifier, err)
	}
	return n, nil
}

// Ping verifies the database is reachable.
func (w *Writer) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

func (w *Writer) rollback(tx *sql.Tx, identifier string) {
	if err := tx.Rollback(); err != nil {
		w.logger.Warn().
			Err(err).
			Str("identifier", identifier).
			Msg("Rollback failed")
	}
}

func (w *Writer) fail(identifier, op string, index int, err error) error {
	saveFailuresTotal.WithLabelValues(op).Inc()
	w.logger.Error().
		Err(err).
		Str("identifier", identifier).
		Str("op", op).
		Int("index", index).
		Msg("Insert failed, transaction rolled back")
	return &PersistenceError{
		Identifier: identifier,
		Op:         op,
		Index:      index,
		Err:        err,
	}
}
