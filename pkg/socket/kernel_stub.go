//go:build !linux

package socket

import (
	"errors"
	"net"
)

var errPlatformNotSupported = errors.New("socket: kernel receive-timestamp reader not supported on this platform")

func newKernelReader(conn *net.UDPConn) (Reader, error) {
	return nil, errPlatformNotSupported
}
