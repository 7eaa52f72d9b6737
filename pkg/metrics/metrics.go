// Package metrics exposes the Prometheus registry shared by the loader.
// Metrics are defined with promauto next to the code that updates them
// (registry, pagination, store, ingest, syncstate); this package serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry all loader metrics register with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the counterpart of Registry used for exposition.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Registry Metrics (pkg/registry):
//   - nsi_registry_requests_total{status} (Counter): Page requests by HTTP status or failure kind
//   - nsi_registry_request_duration_seconds (Histogram): Page request duration
//   - nsi_registry_errors_total{class} (Counter): Errors by class (network, client, server, decode, registry)
//
// Download Metrics (pkg/pagination):
//   - nsi_download_pages_total (Counter): Pages walked by the downloader
//   - nsi_downloads_total{result} (Counter): Dictionary downloads by result (ok, error)
//
// Store Metrics (pkg/store):
//   - nsi_records_saved_total (Counter): Records committed
//   - nsi_save_failures_total{op} (Counter): Failed saves by step (begin, marshal, insert, commit)
//   - nsi_save_duration_seconds (Histogram): Save transaction duration
//
// Sync Metrics (pkg/ingest, pkg/syncstate):
//   - nsi_sync_outcomes_total{status} (Counter): Per-dictionary batch outcomes (ok, error)
//   - nsi_sync_duration_seconds (Histogram): Batch run duration
//   - nsi_sync_last_run_timestamp_seconds (Gauge): Unix time of the last finished batch
//   - nsi_sync_reports_recorded_total (Counter): Reports written to Redis
//   - nsi_sync_store_errors_total{operation} (Counter): Report store errors
//
// Example Prometheus Queries:
//
//   # Failed dictionaries per hour
//   increase(nsi_sync_outcomes_total{status="error"}[1h])
//
//   # Time since the last batch
//   time() - nsi_sync_last_run_timestamp_seconds
//
//   # P95 page latency
//   histogram_quantile(0.95, rate(nsi_registry_request_duration_seconds_bucket[5m]))
