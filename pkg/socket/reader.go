package socket

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// Reader reads UDP datagrams along with the peer address and a receive
// timestamp. Two implementations exist: a Linux kernel-timestamped
// reader (kernel_linux.go) using SO_TIMESTAMPNS, and a portable wallclock
// reader (wallclock.go) used elsewhere or when the kernel path is
// unavailable. Receive timestamps are exposed for verbose diagnostics
// only; protocol correctness never depends on their accuracy (spec §9).
type Reader interface {
	// ReadFrom blocks until a datagram arrives or ctx is done.
	ReadFrom(ctx context.Context, buf []byte) (n int, addr *net.UDPAddr, recvTime time.Time, err error)
}

// NewReader picks the kernel-timestamped reader when available, falling
// back to the wallclock reader otherwise, mirroring
// tools/twamp/pkg/udp.NewTimestampedReader's selection logic.
func NewReader(log *slog.Logger, conn *net.UDPConn) Reader {
	if log == nil {
		log = slog.Default()
	}
	kr, err := newKernelReader(conn)
	if err == nil {
		log.Debug("socket: using kernel receive-timestamp reader")
		return kr
	}
	log.Debug("socket: falling back to wallclock reader", "error", err)
	return newWallclockReader(conn)
}
