// Package metrics exposes Prometheus collectors for the room relay.
// The /metrics endpoint is wired in cmd/server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedClients tracks websocket clients currently attached to the relay.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atrium_relay_connected_clients",
		Help: "Number of websocket clients currently connected to the room relay.",
	})

	// BroadcastsTotal counts frames fanned out to room peers.
	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atrium_relay_broadcasts_total",
		Help: "Total frames broadcast to room peers.",
	})

	// DroppedClientsTotal counts clients disconnected because their send buffer filled.
	DroppedClientsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atrium_relay_dropped_clients_total",
		Help: "Total clients dropped because their outbound buffer was full.",
	})

	// RateLimitedTotal counts inbound frames rejected by the per-participant send limiter.
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atrium_relay_rate_limited_total",
		Help: "Total inbound frames rejected by the send rate limiter.",
	})
)
