// Package socket adapts a UDP datagram socket to the blocking,
// deadline-driven model the sender, receiver and broker state machines
// expect: a single send-to/receive-from surface with an absolute read
// deadline, so the caller's event loop can block on "whatever happens
// first" without its own timer goroutine.
package socket

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
)

// Socket is the datagram abstraction consumed by pkg/sender, pkg/receiver
// and pkg/broker. It is not safe for concurrent Receive calls (each
// endpoint runs a single-threaded event loop per spec §5); SendTo may be
// called from the same goroutine as Receive without issue.
type Socket interface {
	// SendTo writes b as a single datagram to addr.
	SendTo(addr *net.UDPAddr, b []byte) (int, error)

	// ReceiveFrom blocks until a datagram arrives, the deadline passes, or
	// ctx is cancelled, whichever comes first. On timeout it returns a
	// net.Error with Timeout() == true.
	ReceiveFrom(ctx context.Context, deadline time.Time, buf []byte) (n int, addr *net.UDPAddr, recvTime time.Time, err error)

	LocalAddr() *net.UDPAddr
	Close() error
}

type udpSocket struct {
	conn   *net.UDPConn
	reader Reader
	clock  clockwork.Clock
}

// Listen opens a UDP socket bound to laddr (which may leave the port as
// 0 for an ephemeral bind, as the broker's peer-facing sockets and test
// harnesses do).
func Listen(log *slog.Logger, clock clockwork.Clock, laddr *net.UDPAddr) (Socket, error) {
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", laddr, err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &udpSocket{
		conn:   conn,
		reader: NewReader(log, conn),
		clock:  clock,
	}, nil
}

func (s *udpSocket) SendTo(addr *net.UDPAddr, b []byte) (int, error) {
	return s.conn.WriteToUDP(b, addr)
}

func (s *udpSocket) ReceiveFrom(ctx context.Context, deadline time.Time, buf []byte) (int, *net.UDPAddr, time.Time, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	return s.reader.ReadFrom(ctx, buf)
}

func (s *udpSocket) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

func (s *udpSocket) Close() error {
	return s.conn.Close()
}
