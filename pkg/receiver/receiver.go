// Package receiver implements the receiver side of the UDPtransfer
// protocol: Listening -> Negotiated -> Receiving -> Flushing -> Done,
// per spec §4.3.
package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"time"

	"github.com/PatrikValkovic/UDPtransfer/pkg/metrics"
	"github.com/PatrikValkovic/UDPtransfer/pkg/socket"
	"github.com/jonboulle/clockwork"
)

// Sink is where the receiver flushes the reassembled file; satisfied by
// internal/fileio.Sink in the binary and a fake in tests.
type Sink interface {
	WriteAll(name string, data []byte) error
}

// Config collects everything the receiver needs to accept one transfer.
type Config struct {
	Log    *slog.Logger
	Clock  clockwork.Clock
	Socket socket.Socket
	Sink   Sink

	// MaxPacketSize and MinChecksumSize bound what this receiver will
	// accept during negotiation, independent of what the sender proposes
	// (spec §4.3: "possibly adjusts parameters downward").
	MaxPacketSize  int
	MinChecksumSize int
	WindowSize     int

	IdleTimeout time.Duration
	EndGrace    time.Duration
	MaxRetries  int

	// connIDFunc is overridable in tests for deterministic conn_id.
	connIDFunc func() uint16
}

func (c *Config) setDefaults() {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.MaxPacketSize == 0 {
		c.MaxPacketSize = 1500
	}
	if c.MinChecksumSize == 0 {
		c.MinChecksumSize = 4
	}
	if c.WindowSize == 0 {
		c.WindowSize = 16
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Second
	}
	if c.EndGrace == 0 {
		c.EndGrace = 1 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 10
	}
	if c.connIDFunc == nil {
		c.connIDFunc = func() uint16 {
			id := uint16(rand.IntN(65535))
			if id == 0 {
				id = 1
			}
			return id
		}
	}
}

// Receiver accepts a single connection's worth of DATA packets and
// reassembles them to its Sink.
type Receiver struct {
	log   *slog.Logger
	clock clockwork.Clock
	sock  socket.Socket
	sink  Sink

	maxPacketSize   int
	minChecksumSize int
	localWindowSize int
	idleTimeout     time.Duration
	endGrace        time.Duration
	maxRetries      int
	mintConnID      func() uint16

	state  State
	connID uint16
	peer   *net.UDPAddr

	packetSize   int
	windowSize   int
	checksumSize int

	expected      uint16
	hasDelivered  bool
	ackToSend     uint16
	reorderBuffer map[uint16][]byte
	assembled     []byte

	filename      string
	filenameKnown bool
}

// New constructs a Receiver ready to Run.
func New(cfg Config) *Receiver {
	cfg.setDefaults()
	return &Receiver{
		log:             cfg.Log,
		clock:           cfg.Clock,
		sock:            cfg.Socket,
		sink:            cfg.Sink,
		maxPacketSize:   cfg.MaxPacketSize,
		minChecksumSize: cfg.MinChecksumSize,
		localWindowSize: cfg.WindowSize,
		idleTimeout:     cfg.IdleTimeout,
		endGrace:        cfg.EndGrace,
		maxRetries:      cfg.MaxRetries,
		mintConnID:      cfg.connIDFunc,
		ackToSend:       0,
		reorderBuffer:   make(map[uint16][]byte),
	}
}

// State returns the receiver's current state.
func (r *Receiver) State() State { return r.state }

// Run drives the receiver through one full connection lifecycle: accept
// INIT, negotiate, receive DATA until END, flush to the sink, and
// acknowledge close.
func (r *Receiver) Run(ctx context.Context) error {
	if err := r.listen(ctx); err != nil {
		r.state = StateFailed
		metrics.ConnectionsFailed.WithLabelValues("receiver").Inc()
		return fmt.Errorf("receiver: listen: %w", err)
	}
	r.state = StateNegotiated

	r.state = StateReceiving
	if err := r.receiveLoop(ctx); err != nil {
		r.state = StateFailed
		metrics.ConnectionsFailed.WithLabelValues("receiver").Inc()
		return fmt.Errorf("receiver: receive: %w", err)
	}

	r.state = StateFlushing
	if err := r.flush(ctx); err != nil {
		r.state = StateFailed
		metrics.ConnectionsFailed.WithLabelValues("receiver").Inc()
		return fmt.Errorf("receiver: flush: %w", err)
	}

	r.state = StateDone
	r.log.Info("receiver: transfer complete", "conn_id", r.connID, "bytes", len(r.assembled))
	return nil
}
