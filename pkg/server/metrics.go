package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RoomsActive tracks rooms currently running.
	RoomsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "exoform_rooms_active",
			Help: "Number of rooms currently running",
		},
	)

	// PeersConnected tracks accepted connections that have not closed.
	PeersConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "exoform_peers_connected",
			Help: "Number of connected peers",
		},
	)

	// CommandsTotal counts commands by outcome: applied, noop or rejected.
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exoform_commands_total",
			Help: "Total number of graph commands processed",
		},
		[]string{"result"},
	)

	// ChangesBroadcast counts changes queued to peers.
	ChangesBroadcast = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exoform_changes_broadcast_total",
			Help: "Total number of changes sent to peers",
		},
	)

	// PeersDropped counts peers removed for being too slow or unreachable.
	PeersDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exoform_peers_dropped_total",
			Help: "Total number of peers dropped during fan-out",
		},
	)

	// SnapshotWrites counts snapshot saves by outcome: ok or error.
	SnapshotWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exoform_snapshot_writes_total",
			Help: "Total number of snapshot writes",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(RoomsActive)
	prometheus.MustRegister(PeersConnected)
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(ChangesBroadcast)
	prometheus.MustRegister(PeersDropped)
	prometheus.MustRegister(SnapshotWrites)
}
