//go:build linux

package socket

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// kernelReader reads via raw Recvmsg with SO_TIMESTAMPNS so each datagram
// carries the kernel's receive timestamp, mirroring
// tools/twamp/pkg/udp.KernelTimestampedReader.
type kernelReader struct {
	conn *net.UDPConn
	fd   int
}

func newKernelReader(conn *net.UDPConn) (Reader, error) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return nil, err
	}
	var fd int
	if err := rawConn.Control(func(f uintptr) { fd = int(f) }); err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TIMESTAMPNS, 1); err != nil {
		return nil, fmt.Errorf("set SO_TIMESTAMPNS: %w", err)
	}
	return &kernelReader{conn: conn, fd: fd}, nil
}

func (r *kernelReader) ReadFrom(ctx context.Context, buf []byte) (int, *net.UDPAddr, time.Time, error) {
	oob := make([]byte, 512)
	for {
		if err := ctx.Err(); err != nil {
			return 0, nil, time.Time{}, err
		}

		n, oobn, _, from, err := unix.Recvmsg(r.fd, buf, oob, 0)
		if err != nil {
			if errno, ok := err.(syscall.Errno); ok && (errno == syscall.EAGAIN || errno == syscall.EWOULDBLOCK) {
				time.Sleep(time.Millisecond)
				continue
			}
			return 0, nil, time.Time{}, fmt.Errorf("recvmsg: %w", err)
		}

		addr := sockaddrToUDPAddr(from)
		ts := recvTimestamp(oob[:oobn])
		return n, addr, ts, nil
	}
}

func recvTimestamp(oob []byte) time.Time {
	cmsgs, err := syscall.ParseSocketControlMessage(oob)
	if err != nil {
		return time.Now()
	}
	for _, cmsg := range cmsgs {
		if cmsg.Header.Level == syscall.SOL_SOCKET && cmsg.Header.Type == syscall.SO_TIMESTAMPNS {
			if len(cmsg.Data) < int(unsafe.Sizeof(syscall.Timespec{})) {
				continue
			}
			ts := *(*syscall.Timespec)(unsafe.Pointer(&cmsg.Data[0]))
			return time.Unix(int64(ts.Sec), int64(ts.Nsec))
		}
	}
	return time.Now()
}

func sockaddrToUDPAddr(sa syscall.Sockaddr) *net.UDPAddr {
	switch a := sa.(type) {
	case *syscall.SockaddrInet4:
		return &net.UDPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}
	case *syscall.SockaddrInet6:
		return &net.UDPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}
	default:
		return nil
	}
}
