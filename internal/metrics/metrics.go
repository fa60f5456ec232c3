// Package metrics declares the Prometheus instruments for the networking
// core, kept close to the components they measure per the teacher's
// convention (namespace: gameserver, subsystem: feature area).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWebSocketConnections tracks current live connections (Spectators + Sessions).
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gameserver",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of running rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gameserver",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomSpectators tracks the number of ad-hoc spectators per room.
	RoomSpectators = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gameserver",
		Subsystem: "room",
		Name:      "spectators_count",
		Help:      "Number of spectators attached to each room",
	}, []string{"room_id"})

	// WebsocketEvents tracks frames processed by kind and outcome.
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gameserver",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket frames processed",
	}, []string{"frame_type", "status"})

	// AskDuration tracks how long an Ask.* call blocks before resolving.
	AskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gameserver",
		Subsystem: "agent",
		Name:      "ask_duration_seconds",
		Help:      "Time spent blocked in an Ask.* call",
		Buckets:   prometheus.DefBuckets,
	}, []string{"ask_kind"})

	// ReconnectsTotal tracks successful and timed-out reconnect attempts.
	ReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gameserver",
		Subsystem: "session",
		Name:      "reconnects_total",
		Help:      "Total reconnect attempts by outcome",
	}, []string{"outcome"})

	// ChatMessagesTotal tracks chat frames fanned out.
	ChatMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gameserver",
		Subsystem: "chat",
		Name:      "messages_total",
		Help:      "Total chat messages fanned out across all rooms",
	})
)

func IncConnection() { ActiveWebSocketConnections.Inc() }

func DecConnection() { ActiveWebSocketConnections.Dec() }
