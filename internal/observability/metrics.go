// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Session metrics
	SessionsOpened prometheus.Counter
	SeriesPoints   prometheus.Gauge
	SeriesVersion  prometheus.Gauge

	// Live update metrics
	LiveUpdatesAccepted prometheus.Counter
	LiveUpdatesDropped  *prometheus.CounterVec
	MalformedMessages   *prometheus.CounterVec

	// History and scan metrics
	HistoryLoads        *prometheus.CounterVec
	SyncPointsEmitted   prometheus.Counter
	ScanRunsTotal       *prometheus.CounterVec
	ScanDuration        prometheus.Histogram
	ScanPointsRecovered prometheus.Counter

	// Bus metrics
	BusPublished prometheus.Counter
	BusDropped   prometheus.Counter

	// Ledger metrics
	LedgerLogsReceived *prometheus.CounterVec
	HighestBlockSeen   prometheus.Gauge
	RPCCallLatency     *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Stream metrics
	StreamClients prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "market_chart"
	}

	return &Metrics{
		// Session metrics
		SessionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "opened_total",
			Help:      "Total number of market sessions opened",
		}),
		SeriesPoints: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "series_points",
			Help:      "Number of points in the active canonical series",
		}),
		SeriesVersion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "series_version",
			Help:      "Version counter of the active canonical series",
		}),

		// Live update metrics
		LiveUpdatesAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "updates_accepted_total",
			Help:      "Total number of live updates merged into the series",
		}),
		LiveUpdatesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "updates_dropped_total",
			Help:      "Total number of live updates dropped by reason",
		}, []string{"reason"}),
		MalformedMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "malformed_messages_total",
			Help:      "Total number of notification payloads that failed to decode",
		}, []string{"source"}),

		// History and scan metrics
		HistoryLoads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "loads_total",
			Help:      "Total number of indexer history loads by outcome",
		}, []string{"outcome"}),
		SyncPointsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "sync_points_total",
			Help:      "Total number of sync points emitted on observed-price divergence",
		}),
		ScanRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "runs_total",
			Help:      "Total number of gap recovery scans by outcome",
		}, []string{"outcome"}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Gap recovery scan duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		ScanPointsRecovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "points_recovered_total",
			Help:      "Total number of points recovered from ledger logs",
		}),

		// Bus metrics
		BusPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "published_total",
			Help:      "Total number of notifications published",
		}),
		BusDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "dropped_total",
			Help:      "Total number of deliveries dropped on full subscriber buffers",
		}),

		// Ledger metrics
		LedgerLogsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "logs_received_total",
			Help:      "Total number of market logs received by source",
		}, []string{"source"}),
		HighestBlockSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "highest_block_seen",
			Help:      "Highest ledger block number seen",
		}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rpc_call_latency_seconds",
			Help:      "Ledger RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Stream metrics
		StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "stream_clients",
			Help:      "Number of connected series stream clients",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSessionOpened increments the sessions opened counter.
func RecordSessionOpened() {
	DefaultMetrics.SessionsOpened.Inc()
}

// UpdateSeries updates the canonical series gauges.
func UpdateSeries(points int, version uint64) {
	DefaultMetrics.SeriesPoints.Set(float64(points))
	DefaultMetrics.SeriesVersion.Set(float64(version))
}

// RecordLiveAccepted increments the accepted live updates counter.
func RecordLiveAccepted() {
	DefaultMetrics.LiveUpdatesAccepted.Inc()
}

// RecordLiveDropped records a dropped live update.
func RecordLiveDropped(reason string) {
	DefaultMetrics.LiveUpdatesDropped.WithLabelValues(reason).Inc()
}

// RecordMalformed records a notification payload that failed to decode.
func RecordMalformed(source string) {
	DefaultMetrics.MalformedMessages.WithLabelValues(source).Inc()
}

// RecordHistoryLoad records an indexer history load.
func RecordHistoryLoad(outcome string) {
	DefaultMetrics.HistoryLoads.WithLabelValues(outcome).Inc()
}

// RecordSyncPoint increments the sync points counter.
func RecordSyncPoint() {
	DefaultMetrics.SyncPointsEmitted.Inc()
}

// RecordScan records a gap recovery scan.
func RecordScan(outcome string, durationSeconds float64, points int) {
	DefaultMetrics.ScanRunsTotal.WithLabelValues(outcome).Inc()
	DefaultMetrics.ScanDuration.Observe(durationSeconds)
	DefaultMetrics.ScanPointsRecovered.Add(float64(points))
}

// RecordBusPublish records a publish and the number of dropped deliveries.
func RecordBusPublish(dropped int) {
	DefaultMetrics.BusPublished.Inc()
	if dropped > 0 {
		DefaultMetrics.BusDropped.Add(float64(dropped))
	}
}

// RecordLedgerLog records a market log received from source.
func RecordLedgerLog(source string, block uint64) {
	DefaultMetrics.LedgerLogsReceived.WithLabelValues(source).Inc()
	UpdateHighestBlock(block)
}

// UpdateHighestBlock updates the highest block seen gauge.
func UpdateHighestBlock(block uint64) {
	DefaultMetrics.HighestBlockSeen.Set(float64(block))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// StreamClientConnected increments the stream clients gauge.
func StreamClientConnected() {
	DefaultMetrics.StreamClients.Inc()
}

// StreamClientDisconnected decrements the stream clients gauge.
func StreamClientDisconnected() {
	DefaultMetrics.StreamClients.Dec()
}
