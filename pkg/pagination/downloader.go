package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/nsi-loader/pkg/dictionary"
	"github.com/Sternrassler/nsi-loader/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	downloadPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nsi_download_pages_total",
		Help: "Total dictionary pages walked by the downloader",
	})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nsi_downloads_total",
		Help: "Total dictionary downloads by result",
	}, []string{"result"})
)

// ErrPageLimitExceeded is returned when Config.MaxPages full pages were
// walked without reaching a short page.
var ErrPageLimitExceeded = errors.New("page limit exceeded")

// DefaultPageSize is the page size used by the registry clients in production.
const DefaultPageSize = 200

// Config holds downloader configuration
type Config struct {
	// PageSize is the number of records requested per page
	PageSize int
	// MaxPages caps the number of pages per dictionary (0 = unbounded)
	MaxPages int
}

// DefaultConfig returns the default downloader configuration
func DefaultConfig() Config {
	return Config{
		PageSize: DefaultPageSize,
		MaxPages: 0,
	}
}

// PageFetcher is the interface the registry client must implement for single-page fetching
type PageFetcher interface {
	// FetchPage fetches one 1-based page of a dictionary
	FetchPage(ctx context.Context, identifier string, page, size int) ([]dictionary.Row, error)
}

// Downloader drives the page loop for one dictionary at a time
type Downloader struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewDownloader creates a new downloader
func NewDownloader(fetcher PageFetcher, config Config) *Downloader {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}

	return &Downloader{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger(logging.ComponentDownloader),
	}
}

// PageSize returns the configured page size
func (d *Downloader) PageSize() int {
	return d.config.PageSize
}

// Download fetches every page of a dictionary and returns the merged records.
// Fetch errors are returned unchanged; no partial result is returned.
func (d *Downloader) Download(ctx context.Context, identifier string) (dictionary.DatasetResult, error) {
	start := time.Now()

	d.logger.Info().
		Str("identifier", identifier).
		Int("page_size", d.config.PageSize).
		Msg("Starting download")

	var records []dictionary.Record
	page := 1

	for {
		if d.config.MaxPages > 0 && page > d.config.MaxPages {
			downloadsTotal.WithLabelValues("error").Inc()
			d.logger.Error().
				Str("identifier", identifier).
				Int("max_pages", d.config.MaxPages).
				Int("records", len(records)).
				Msg("Page limit reached before a short page")
			return dictionary.DatasetResult{}, fmt.Errorf("%w: %s returned %d full pages", ErrPageLimitExceeded, identifier, d.config.MaxPages)
		}

		rows, err := d.fetcher.FetchPage(ctx, identifier, page, d.config.PageSize)
		if err != nil {
			downloadsTotal.WithLabelValues("error").Inc()
			d.logger.Error().
				Err(err).
				Str("identifier", identifier).
				Int("page", page).
				Msg("Download aborted")
			return dictionary.DatasetResult{}, err
		}
		downloadPagesTotal.Inc()

		p := dictionary.NormalizePage(page, rows)
		records = append(records, p.Records...)

		d.logger.Debug().
			Str("identifier", identifier).
			Int("page", page).
			Int("records", len(p.Records)).
			Int("total", len(records)).
			Msg("Page merged")

		if len(p.Records) < d.config.PageSize {
			break
		}
		page++
	}

	if records == nil {
		records = []dictionary.Record{}
	}

	downloadsTotal.WithLabelValues("ok").Inc()
	d.logger.Info().
		Str("identifier", identifier).
		Int("pages", page).
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Download complete")

	return dictionary.DatasetResult{
		Identifier: identifier,
		Records:    records,
	}, nil
}
