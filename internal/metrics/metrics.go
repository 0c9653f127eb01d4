package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReportsTotal counts inbound occupancy reports by outcome:
	// applied, unauthorized, unknown_camera, invalid, storage_error, error.
	ReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "park_reports_total",
			Help: "Inbound occupancy reports by outcome",
		},
		[]string{"source", "outcome"},
	)

	// ForwardsTotal counts images forwarded to the inference backend by outcome:
	// success, unknown_camera, upstream_error, transport_error, error.
	ForwardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "park_inference_forwards_total",
			Help: "Images forwarded to the inference backend by outcome",
		},
		[]string{"outcome"},
	)

	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "park_inference_request_duration_seconds",
			Help:    "Latency of inference backend calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"backend"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "park_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	LotFreeSpots = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "park_lot_free_spots",
			Help: "Last applied free spot count per parking lot",
		},
		[]string{"lot_id"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "park_websocket_clients",
			Help: "Connected occupancy feed clients",
		},
	)

	SweptTempFiles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "park_image_temp_files_swept_total",
			Help: "Abandoned temporary image files removed by the sweeper",
		},
	)
)
