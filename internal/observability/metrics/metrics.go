package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Broadcaster metrics
var (
	// MessagesSent counts status frames written to the RPC connection.
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nowplaying_messages_sent_total",
			Help: "Total status messages sent",
		},
	)

	// SendErrors counts failed frame writes. Any failure is fatal, so this is 0 or 1 per process.
	SendErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nowplaying_send_errors_total",
			Help: "Total status message send failures",
		},
	)

	// ConfigReloads tracks per-pass config reloads by result (ok/error).
	ConfigReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nowplaying_config_reloads_total",
			Help: "Total config reloads by result",
		},
		[]string{"result"},
	)

	// Passes counts completed passes over the lyrics.
	Passes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nowplaying_passes_total",
			Help: "Total completed passes over the lyrics",
		},
	)

	// BroadcasterState is the current state (1=loaded, 0=terminated).
	BroadcasterState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nowplaying_broadcaster_state",
			Help: "Current broadcaster state (1=loaded, 0=terminated)",
		},
	)

	// LastSendTimestamp is the unix time of the last successful send.
	LastSendTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nowplaying_last_send_timestamp_seconds",
			Help: "Unix time of the last successful status send",
		},
	)
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)
