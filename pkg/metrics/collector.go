// Package metrics exposes the bot's Prometheus instruments.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of updates dispatched labeled by update type and result",
		},
		[]string{"type", "result"},
	)
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	sendRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_send_retries_total",
			Help: "Retried outbound sends labeled by reason",
		},
		[]string{"reason"},
	)
	poolInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_worker_pool_in_flight",
			Help: "Update tasks currently running",
		},
	)
	poolRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_worker_pool_rejected_total",
			Help: "Updates rejected because the worker pool was full",
		},
	)
	pendingSteps = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_pending_steps",
			Help: "Conversations waiting for a follow-up reply",
		},
	)
	doubleTapsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_callback_double_taps_total",
			Help: "Repeated button presses detected within the double-tap window",
		},
	)
	adminAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_admin_alerts_total",
			Help: "Admin alerts labeled by delivery status",
		},
		[]string{"status"},
	)
	inboundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_inbound_updates_total",
			Help: "Updates received from the transport labeled by source and result",
		},
		[]string{"source", "result"},
	)
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served labeled by route and status code",
		},
		[]string{"route", "code"},
	)
	httpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// RecordUpdate counts a dispatched update.
func RecordUpdate(updateType, result string) {
	updatesTotal.WithLabelValues(orUnknown(updateType), orUnknown(result)).Inc()
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	command = orUnknown(command)
	botCommandsTotal.WithLabelValues(command, orUnknown(status)).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	errorsTotal.WithLabelValues(orUnknown(errType), orUnknown(severity)).Inc()
}

func RecordSendRetry(reason string) {
	sendRetriesTotal.WithLabelValues(orUnknown(reason)).Inc()
}

func SetPoolInFlight(n int) {
	poolInFlight.Set(float64(n))
}

func RecordPoolRejected() {
	poolRejectedTotal.Inc()
}

func SetPendingSteps(n int) {
	pendingSteps.Set(float64(n))
}

func RecordDoubleTap() {
	doubleTapsTotal.Inc()
}

func RecordAdminAlert(status string) {
	adminAlertsTotal.WithLabelValues(orUnknown(status)).Inc()
}

// RecordInbound counts an update received by the poller or the webhook.
func RecordInbound(source, result string) {
	inboundTotal.WithLabelValues(orUnknown(source), orUnknown(result)).Inc()
}

// RecordHTTPRequest counts a served request and records its duration.
func RecordHTTPRequest(route string, code int, duration time.Duration) {
	route = orUnknown(route)
	httpRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	httpDurationSeconds.WithLabelValues(route).Observe(duration.Seconds())
}
