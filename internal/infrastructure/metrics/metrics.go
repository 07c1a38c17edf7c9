package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ipmarket",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ipmarket",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	// Chain write counters, per contract method
	ChainWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ipmarket",
			Subsystem: "server",
			Name:      "chain_writes_total",
			Help:      "Total contract write transactions",
		},
		[]string{"contract", "method", "status"},
	)

	// Chain write duration, submission through mined receipt
	ChainWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ipmarket",
			Subsystem: "server",
			Name:      "chain_write_duration_seconds",
			Help:      "Contract write duration including receipt wait",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"contract", "method"},
	)

	// Escrow transitions counter
	EscrowTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ipmarket",
			Subsystem: "server",
			Name:      "escrow_transitions_total",
			Help:      "Total escrow deal state transitions",
		},
		[]string{"action", "status"},
	)

	// Reconciliation sweeps counter
	ReconcileSweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ipmarket",
			Subsystem: "server",
			Name:      "reconcile_sweeps_total",
			Help:      "Total escrow reconciliation sweeps",
		},
		[]string{"status"},
	)

	// Drifted projections repaired by the reconciler
	ReconcileRepairsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ipmarket",
			Subsystem: "server",
			Name:      "reconcile_repairs_total",
			Help:      "Escrow projections repaired from on-chain state",
		},
	)

	// Connected websocket clients gauge
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ipmarket",
			Subsystem: "server",
			Name:      "websocket_clients",
			Help:      "Currently connected websocket clients",
		},
	)

	// Realtime events counter
	RealtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ipmarket",
			Subsystem: "server",
			Name:      "realtime_events_total",
			Help:      "Total realtime events published",
		},
		[]string{"event"},
	)
)
