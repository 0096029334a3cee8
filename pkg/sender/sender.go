// Package sender implements the sender side of the UDPtransfer protocol:
// Init -> Negotiated -> Transferring -> Closing -> Done, per spec §4.2.
package sender

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/PatrikValkovic/UDPtransfer/pkg/metrics"
	"github.com/PatrikValkovic/UDPtransfer/pkg/protocol"
	"github.com/PatrikValkovic/UDPtransfer/pkg/socket"
	"github.com/jonboulle/clockwork"
)

// Source is the byte source the sender reads its file from; satisfied by
// internal/fileio.Source in the binaries and a fake in tests.
type Source interface {
	io.Reader
	Name() string
}

// Config collects everything the sender needs to run one transfer.
type Config struct {
	Log    *slog.Logger
	Clock  clockwork.Clock
	Socket socket.Socket
	Remote *net.UDPAddr
	Source Source

	ProposedPacketSize   int
	ProposedWindowSize   int
	ProposedChecksumSize int
	Timeout              time.Duration
	MaxRetries           int
}

func (c *Config) setDefaults() {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.ProposedPacketSize == 0 {
		c.ProposedPacketSize = 1400
	}
	if c.ProposedWindowSize == 0 {
		c.ProposedWindowSize = 16
	}
	if c.ProposedChecksumSize == 0 {
		c.ProposedChecksumSize = 4
	}
	if c.Timeout == 0 {
		c.Timeout = 500 * time.Millisecond
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 10
	}
}

// Sender runs a single one-way file transfer to Config.Remote.
type Sender struct {
	log    *slog.Logger
	clock  clockwork.Clock
	sock   socket.Socket
	remote *net.UDPAddr
	source Source

	timeout    time.Duration
	maxRetries int

	state  State
	connID uint16

	packetSize   int
	windowSize   int
	checksumSize int

	base       uint16
	nextSeq    uint16
	inFlight   map[uint16]*inFlightEntry
	eofReached bool
	closing    bool

	firstPacket bool
}

// New constructs a Sender ready to Run a transfer.
func New(cfg Config) *Sender {
	cfg.setDefaults()
	return &Sender{
		log:         cfg.Log,
		clock:       cfg.Clock,
		sock:        cfg.Socket,
		remote:      cfg.Remote,
		source:      cfg.Source,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		packetSize:  cfg.ProposedPacketSize,
		windowSize:  cfg.ProposedWindowSize,
		checksumSize: cfg.ProposedChecksumSize,
		inFlight:    make(map[uint16]*inFlightEntry),
		firstPacket: true,
	}
}

// State returns the sender's current state.
func (s *Sender) State() State { return s.state }

// Run drives the sender through handshake, transfer and close. It
// returns nil only if the transfer reached Done; any other outcome is an
// error and s.State() will be StateFailed.
func (s *Sender) Run(ctx context.Context) error {
	if err := s.handshake(ctx); err != nil {
		s.state = StateFailed
		metrics.ConnectionsFailed.WithLabelValues("sender").Inc()
		return fmt.Errorf("sender: handshake: %w", err)
	}
	s.state = StateNegotiated

	s.state = StateTransferring
	if err := s.transferLoop(ctx); err != nil {
		s.state = StateFailed
		metrics.ConnectionsFailed.WithLabelValues("sender").Inc()
		return fmt.Errorf("sender: transfer: %w", err)
	}

	s.state = StateClosing
	if err := s.closeLoop(ctx); err != nil {
		s.state = StateFailed
		metrics.ConnectionsFailed.WithLabelValues("sender").Inc()
		return fmt.Errorf("sender: close: %w", err)
	}

	s.state = StateDone
	s.log.Info("sender: transfer complete", "conn_id", s.connID)
	return nil
}

func (s *Sender) maxPayload() int {
	return protocol.MaxPayload(s.packetSize, s.checksumSize)
}

func (s *Sender) sendPacket(p *protocol.Packet) error {
	buf, err := protocol.Encode(p, s.checksumSize, s.packetSize)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.Kind, err)
	}
	_, err = s.sock.SendTo(s.remote, buf)
	return err
}

func (s *Sender) replyErr() {
	_ = s.sendPacket(&protocol.Packet{Kind: protocol.KindErr, ConnID: s.connID})
}
