// Package broker implements the fault-injecting UDP relay: two bound
// sockets, one facing the sender and one facing the receiver, forwarding
// datagrams through a drop/mutate/delay pipeline (spec §4.4).
package broker

import (
	"log/slog"
	"math/rand"
	"net"
	"time"

	"github.com/PatrikValkovic/UDPtransfer/pkg/socket"
	"github.com/jonboulle/clockwork"
)

// Config collects the broker's two sockets, the two fixed peer addresses
// traffic is relayed towards, and the fault-injection parameters.
type Config struct {
	Log   *slog.Logger
	Clock clockwork.Clock

	SenderSocket   socket.Socket
	ReceiverSocket socket.Socket
	SenderAddr     *net.UDPAddr
	ReceiverAddr   *net.UDPAddr

	DropRate  float64
	Modify    float64
	DelayMean time.Duration
	DelayStd  time.Duration

	IdleTimeout time.Duration

	// Rand is overridable for deterministic tests and the --seed flag;
	// defaults to a process-seeded generator.
	Rand *rand.Rand
}

func (c *Config) setDefaults() {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Second
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}
