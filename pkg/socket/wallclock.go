package socket

import (
	"context"
	"net"
	"time"
)

// wallclockReader satisfies Reader using ordinary ReadFromUDP plus
// time.Now(), with a runtime-deadline (so it is interrupted promptly at
// ctx's deadline rather than busy-polling). It is the portable fallback
// used on non-Linux platforms or when the kernel timestamp path fails to
// initialize. Only ctx's deadline interrupts a pending read; cancelling
// ctx before that deadline does not.
type wallclockReader struct {
	conn *net.UDPConn
}

func newWallclockReader(conn *net.UDPConn) Reader {
	return &wallclockReader{conn: conn}
}

func (r *wallclockReader) ReadFrom(ctx context.Context, buf []byte) (int, *net.UDPAddr, time.Time, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := r.conn.SetReadDeadline(deadline); err != nil {
			return 0, nil, time.Time{}, err
		}
	} else {
		_ = r.conn.SetReadDeadline(time.Time{})
	}
	n, addr, err := r.conn.ReadFromUDP(buf)
	return n, addr, time.Now(), err
}
