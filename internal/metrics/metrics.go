// Package metrics provides Prometheus metrics for the kinosync client.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels
const (
	ResultSuccess    = "success"
	ResultFailure    = "failure"
	ResultDispatched = "dispatched"
	ResultRejected   = "rejected"
	ResultFailed     = "failed"
	ResultDeclined   = "declined"
)

var (
	// Push channel metrics
	eventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinosync_events_received_total",
			Help: "Push events decoded, by kind",
		},
		[]string{"kind"},
	)

	eventsMalformedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kinosync_events_malformed_total",
			Help: "Push frames that could not be decoded",
		},
	)

	framesBinaryTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kinosync_frames_binary_total",
			Help: "Binary push frames received and discarded",
		},
	)

	transportConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kinosync_transport_connected",
			Help: "1 while the push channel is connected",
		},
	)

	transportReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kinosync_transport_reconnects_total",
			Help: "Push channel reconnect attempts",
		},
	)

	// Refresh metrics
	refreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinosync_refreshes_total",
			Help: "Listing pulls, by result",
		},
		[]string{"result"},
	)

	refreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kinosync_refresh_duration_seconds",
			Help:    "Listing pull duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Command metrics
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinosync_commands_total",
			Help: "Commands issued, by command and result",
		},
		[]string{"command", "result"},
	)

	// State metrics
	filesKnown = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kinosync_files_known",
			Help: "Entries in the current listing",
		},
	)

	transfersInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kinosync_transfers_in_progress",
			Help: "Tracked transfers below 100 percent",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordEvent records a decoded push event.
func RecordEvent(kind string) {
	eventsReceivedTotal.WithLabelValues(kind).Inc()
}

// RecordMalformedEvent records a push frame that failed to decode.
func RecordMalformedEvent() {
	eventsMalformedTotal.Inc()
}

// RecordBinaryFrame records a discarded binary frame.
func RecordBinaryFrame() {
	framesBinaryTotal.Inc()
}

// SetTransportConnected updates the connection gauge.
func SetTransportConnected(connected bool) {
	if connected {
		transportConnected.Set(1)
	} else {
		transportConnected.Set(0)
	}
}

// RecordReconnect records a reconnect attempt.
func RecordReconnect() {
	transportReconnectsTotal.Inc()
}

// RecordRefresh records a finished listing pull.
func RecordRefresh(success bool, duration time.Duration) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	refreshesTotal.WithLabelValues(result).Inc()
	refreshDuration.Observe(duration.Seconds())
}

// RecordCommand records the outcome of a CreateDir or Move attempt.
func RecordCommand(command, result string) {
	commandsTotal.WithLabelValues(command, result).Inc()
}

// SetFilesKnown updates the listing size gauge.
func SetFilesKnown(n int) {
	filesKnown.Set(float64(n))
}

// SetTransfersInProgress updates the in-flight transfer gauge.
func SetTransfersInProgress(n int) {
	transfersInProgress.Set(float64(n))
}
