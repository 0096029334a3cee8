package sender_test

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/PatrikValkovic/UDPtransfer/pkg/receiver"
	"github.com/PatrikValkovic/UDPtransfer/pkg/sender"
	"github.com/PatrikValkovic/UDPtransfer/pkg/socket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	*bytes.Reader
	name string
}

func (f *fakeSource) Name() string { return f.name }

type memSink struct {
	name string
	data []byte
}

func (m *memSink) WriteAll(name string, data []byte) error {
	m.name = name
	m.data = append([]byte(nil), data...)
	return nil
}

func loopbackSocket(t *testing.T, clock clockwork.Clock) socket.Socket {
	t.Helper()
	sock, err := socket.Listen(nil, clock, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { sock.Close() })
	return sock
}

func TestSenderReceiver_Lossless(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewRealClock()
	sendSock := loopbackSocket(t, clock)
	recvSock := loopbackSocket(t, clock)

	sink := &memSink{}
	r := receiver.New(receiver.Config{
		Clock:       clock,
		Socket:      recvSock,
		Sink:        sink,
		IdleTimeout: 200 * time.Millisecond,
		EndGrace:    100 * time.Millisecond,
	})

	payload := bytes.Repeat([]byte("UDPtransfer integration payload. "), 500) // several packets worth
	src := &fakeSource{Reader: bytes.NewReader(payload), name: "integration.bin"}

	s := sender.New(sender.Config{
		Clock:                clock,
		Socket:               sendSock,
		Remote:               recvSock.LocalAddr(),
		Source:               src,
		ProposedPacketSize:   512,
		ProposedWindowSize:   8,
		ProposedChecksumSize: 4,
		Timeout:              200 * time.Millisecond,
		MaxRetries:           20,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	recvErrCh := make(chan error, 1)
	go func() { recvErrCh <- r.Run(ctx) }()

	require.NoError(t, s.Run(ctx))
	require.NoError(t, <-recvErrCh)

	require.Equal(t, "integration.bin", sink.name)
	require.Equal(t, payload, sink.data)
	require.Equal(t, sender.StateDone, s.State())
	require.Equal(t, receiver.StateDone, r.State())
}

func TestSenderReceiver_SmallFile(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewRealClock()
	sendSock := loopbackSocket(t, clock)
	recvSock := loopbackSocket(t, clock)

	sink := &memSink{}
	r := receiver.New(receiver.Config{
		Clock:       clock,
		Socket:      recvSock,
		Sink:        sink,
		IdleTimeout: 200 * time.Millisecond,
		EndGrace:    100 * time.Millisecond,
	})

	payload := []byte("short")
	src := &fakeSource{Reader: bytes.NewReader(payload), name: "short.txt"}

	s := sender.New(sender.Config{
		Clock:                clock,
		Socket:               sendSock,
		Remote:               recvSock.LocalAddr(),
		Source:               src,
		ProposedPacketSize:   512,
		ProposedWindowSize:   4,
		ProposedChecksumSize: 4,
		Timeout:              200 * time.Millisecond,
		MaxRetries:           10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	recvErrCh := make(chan error, 1)
	go func() { recvErrCh <- r.Run(ctx) }()

	require.NoError(t, s.Run(ctx))
	require.NoError(t, <-recvErrCh)
	require.Equal(t, payload, sink.data)
}
