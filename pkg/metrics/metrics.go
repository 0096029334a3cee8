// Package metrics defines the Prometheus collectors shared by the
// sender, receiver and broker binaries, grounded in
// controlplane/telemetry/internal/metrics's promauto.NewCounterVec /
// promauto.NewGaugeVec construction and naming convention.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	labelComponent = "component"
)

var (
	// Retransmissions counts DATA/INIT/END packets the sender resent
	// after a deadline expired without an acknowledgement.
	Retransmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "udptransfer_retransmissions_total",
			Help: "Number of packets retransmitted after a timeout.",
		},
		[]string{labelComponent},
	)

	// DroppedPackets counts received datagrams discarded as transient
	// wire errors: bad checksum, too short, unknown kind, or irrelevant
	// to the current connection.
	DroppedPackets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "udptransfer_dropped_packets_total",
			Help: "Number of received datagrams silently dropped.",
		},
		[]string{labelComponent, "reason"},
	)

	// ReorderBufferSize reports the receiver's current reorder buffer
	// occupancy.
	ReorderBufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "udptransfer_receiver_reorder_buffer_size",
			Help: "Current number of out-of-order payloads held pending in-order drain.",
		},
	)

	// BrokerForwarded counts datagrams the broker relayed to the
	// opposite peer, by relay direction.
	BrokerForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "udptransfer_broker_forwarded_total",
			Help: "Number of datagrams forwarded by the broker.",
		},
		[]string{"direction"},
	)

	// BrokerDropped counts datagrams the broker's drop filter discarded,
	// by relay direction.
	BrokerDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "udptransfer_broker_dropped_total",
			Help: "Number of datagrams discarded by the broker's drop filter.",
		},
		[]string{"direction"},
	)

	// BrokerMutated counts datagrams the broker's mutation filter
	// altered, by relay direction.
	BrokerMutated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "udptransfer_broker_mutated_total",
			Help: "Number of datagrams with at least one byte flipped by the broker.",
		},
		[]string{"direction"},
	)

	// ConnectionsFailed counts connections that reached the Failed
	// state.
	ConnectionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "udptransfer_connections_failed_total",
			Help: "Number of connections that ended in the Failed state.",
		},
		[]string{labelComponent},
	)
)
