package syncstate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reportsRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nsi_sync_reports_recorded_total",
			Help: "Total number of sync reports written to Redis",
		},
	)

	storeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nsi_sync_store_errors_total",
			Help: "Total number of sync report store errors",
		},
		[]string{"operation"}, // "record", "get"
	)
)
