package socket_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/PatrikValkovic/UDPtransfer/pkg/socket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestSocket_SendReceiveRoundTrip(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewRealClock()
	a, err := socket.Listen(nil, clock, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer a.Close()

	b, err := socket.Listen(nil, clock, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer b.Close()

	_, err = a.SendTo(b.LocalAddr(), []byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, from, _, err := b.ReceiveFrom(context.Background(), clock.Now().Add(2*time.Second), buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))
	require.Equal(t, a.LocalAddr().Port, from.Port)
}

func TestSocket_ReceiveTimesOut(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewRealClock()
	a, err := socket.Listen(nil, clock, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer a.Close()

	buf := make([]byte, 64)
	_, _, _, err = a.ReceiveFrom(context.Background(), clock.Now().Add(50*time.Millisecond), buf)
	require.Error(t, err)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Timeout())
}

func TestSocket_ContextCancelStopsReceive(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewRealClock()
	a, err := socket.Listen(nil, clock, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	buf := make([]byte, 64)
	_, _, _, err = a.ReceiveFrom(ctx, clock.Now().Add(5*time.Second), buf)
	require.Error(t, err)
}
