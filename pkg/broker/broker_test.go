package broker_test

import (
	"context"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/PatrikValkovic/UDPtransfer/pkg/broker"
	"github.com/PatrikValkovic/UDPtransfer/pkg/socket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) socket.Socket {
	t.Helper()
	sock, err := socket.Listen(nil, clockwork.NewRealClock(), &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { sock.Close() })
	return sock
}

func TestBroker_ForwardsBothDirections(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewRealClock()
	senderFacing := listen(t)
	receiverFacing := listen(t)

	senderPeer := listen(t) // stands in for the sender endpoint
	receiverPeer := listen(t) // stands in for the receiver endpoint

	b := broker.New(broker.Config{
		Clock:          clock,
		SenderSocket:   senderFacing,
		ReceiverSocket: receiverFacing,
		SenderAddr:     senderPeer.LocalAddr(),
		ReceiverAddr:   receiverPeer.LocalAddr(),
		IdleTimeout:    200 * time.Millisecond,
		Rand:           rand.New(rand.NewSource(1)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	_, err := senderPeer.SendTo(senderFacing.LocalAddr(), []byte("to receiver"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, _, _, err := receiverPeer.ReceiveFrom(ctx, clock.Now().Add(2*time.Second), buf)
	require.NoError(t, err)
	require.Equal(t, "to receiver", string(buf[:n]))

	_, err = receiverPeer.SendTo(receiverFacing.LocalAddr(), []byte("to sender"))
	require.NoError(t, err)

	n, _, _, err = senderPeer.ReceiveFrom(ctx, clock.Now().Add(2*time.Second), buf)
	require.NoError(t, err)
	require.Equal(t, "to sender", string(buf[:n]))
}

func TestBroker_DropRateOneDropsEverything(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewRealClock()
	senderFacing := listen(t)
	receiverFacing := listen(t)
	senderPeer := listen(t)
	receiverPeer := listen(t)

	b := broker.New(broker.Config{
		Clock:          clock,
		SenderSocket:   senderFacing,
		ReceiverSocket: receiverFacing,
		SenderAddr:     senderPeer.LocalAddr(),
		ReceiverAddr:   receiverPeer.LocalAddr(),
		IdleTimeout:    100 * time.Millisecond,
		DropRate:       1,
		Rand:           rand.New(rand.NewSource(1)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	_, err := senderPeer.SendTo(senderFacing.LocalAddr(), []byte("dropped"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	_, _, _, err = receiverPeer.ReceiveFrom(ctx, clock.Now().Add(500*time.Millisecond), buf)
	require.Error(t, err)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Timeout())
}
