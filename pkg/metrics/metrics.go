// Package metrics exposes the service's prometheus collectors
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SettlementsTotal counts settlement attempts by kind and terminal outcome
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_settlements_total",
		Help: "Settlement attempts by kind and outcome",
	}, []string{"kind", "outcome"})

	// LockContentionTotal counts guard acquisitions lost to an in-flight settlement
	LockContentionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_lock_contention_total",
		Help: "Settlement attempts rejected because the account lock was held",
	})

	// TransfersSubmittedTotal counts external transfers handed to the gateway
	TransfersSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_transfers_submitted_total",
		Help: "External transfers submitted to the node gateway",
	})

	// TransfersConfirmedTotal counts transfers observed confirmed on chain
	TransfersConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_transfers_confirmed_total",
		Help: "External transfers confirmed on chain",
	})

	// GatewayRequestDuration observes node gateway round-trip latency
	GatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harvest_gateway_request_duration_seconds",
		Help:    "Node gateway request latency by operation",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// ReconciliationRunsTotal counts reconciliation passes by result
	ReconciliationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_reconciliation_runs_total",
		Help: "Reconciliation pass results",
	}, []string{"result"})

	// SweepScansTotal counts background scan passes by job and result
	SweepScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_sweep_scans_total",
		Help: "Background scan passes by job and result",
	}, []string{"job", "result"})

	// DatabaseConnectionsGauge tracks sql connection pool state
	DatabaseConnectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "harvest_database_connections",
		Help: "Database connection pool state",
	}, []string{"state"})
)

// NewTimer starts a timer that records into the given observer on
// ObserveDuration.
func NewTimer(o prometheus.Observer) *prometheus.Timer {
	return prometheus.NewTimer(o)
}
