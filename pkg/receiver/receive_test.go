package receiver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/PatrikValkovic/UDPtransfer/pkg/protocol"
	"github.com/stretchr/testify/require"
)

// discardSocket is a no-op socket.Socket fake so tests exercising
// sendAck/sendErr don't need a real UDP connection.
type discardSocket struct{}

func (discardSocket) SendTo(*net.UDPAddr, []byte) (int, error) { return 0, nil }
func (discardSocket) ReceiveFrom(context.Context, time.Time, []byte) (int, *net.UDPAddr, time.Time, error) {
	return 0, nil, time.Time{}, nil
}
func (discardSocket) LocalAddr() *net.UDPAddr { return nil }
func (discardSocket) Close() error            { return nil }

func newTestReceiver() *Receiver {
	return &Receiver{
		sock:          discardSocket{},
		windowSize:    4,
		checksumSize:  4,
		packetSize:    512,
		reorderBuffer: make(map[uint16][]byte),
	}
}

func TestDeliver_ExtractsFilenameOnFirstPayload(t *testing.T) {
	t.Parallel()

	r := newTestReceiver()
	header := protocol.EncodeFilenameHeader("hello.txt")
	r.deliver(0, append(header, []byte("body")...))

	require.Equal(t, "hello.txt", r.filename)
	require.True(t, r.filenameKnown)
	require.Equal(t, []byte("body"), r.assembled)
	require.Equal(t, uint16(1), r.expected)
	require.True(t, r.hasDelivered)
	require.Equal(t, uint16(0), r.ackToSend)
}

func TestDeliver_SubsequentPayloadsAppendVerbatim(t *testing.T) {
	t.Parallel()

	r := newTestReceiver()
	header := protocol.EncodeFilenameHeader("f")
	r.deliver(0, append(header, []byte("AAA")...))
	r.deliver(1, []byte("BBB"))

	require.Equal(t, []byte("AAABBB"), r.assembled)
	require.Equal(t, uint16(2), r.expected)
}

func TestDrainReorderBuffer_ContiguousRun(t *testing.T) {
	t.Parallel()

	r := newTestReceiver()
	header := protocol.EncodeFilenameHeader("")
	r.reorderBuffer[2] = []byte("C")
	r.reorderBuffer[1] = []byte("B")
	r.deliver(0, append(header, []byte("A")...))

	r.drainReorderBuffer()

	require.Equal(t, []byte("ABC"), r.assembled)
	require.Equal(t, uint16(3), r.expected)
	require.Empty(t, r.reorderBuffer)
}

func TestDrainReorderBuffer_StopsAtGap(t *testing.T) {
	t.Parallel()

	r := newTestReceiver()
	header := protocol.EncodeFilenameHeader("")
	r.reorderBuffer[2] = []byte("C") // gap at seq 1
	r.deliver(0, append(header, []byte("A")...))

	r.drainReorderBuffer()

	require.Equal(t, []byte("A"), r.assembled)
	require.Equal(t, uint16(1), r.expected)
	require.Len(t, r.reorderBuffer, 1)
}

func TestHandleData_OutOfWindowRepeatsAck(t *testing.T) {
	t.Parallel()

	r := newTestReceiver()
	header := protocol.EncodeFilenameHeader("")
	r.deliver(0, append(header, []byte("A")...))
	require.Equal(t, uint16(0), r.ackToSend)

	// seq == expected-1 (already delivered): out of window, must not
	// alter assembled or ackToSend (idempotent retransmission, spec §8).
	before := append([]byte(nil), r.assembled...)
	r.handleData(&protocol.Packet{Seq: 0, Payload: []byte("A-retransmit")}, nil)
	require.Equal(t, before, r.assembled)
	require.Equal(t, uint16(0), r.ackToSend)
}

func TestHandleData_InWindowOutOfOrderBuffers(t *testing.T) {
	t.Parallel()

	r := newTestReceiver()
	r.handleData(&protocol.Packet{Seq: 1, Payload: []byte("B")}, nil)

	require.Contains(t, r.reorderBuffer, uint16(1))
	require.Equal(t, uint16(0), r.expected)
	require.Empty(t, r.assembled)
}
