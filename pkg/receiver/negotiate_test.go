package receiver

import (
	"testing"

	"github.com/PatrikValkovic/UDPtransfer/pkg/protocol"
	"github.com/stretchr/testify/require"
)

func TestNegotiate_CapsPacketSizeToLocalMax(t *testing.T) {
	t.Parallel()

	r := &Receiver{maxPacketSize: 1400, localWindowSize: 32, minChecksumSize: 4}
	packetSize, _, _ := r.negotiate(9000, 16, 4)
	require.Equal(t, 1400, packetSize)
}

func TestNegotiate_CapsWindowSizeToLocalMax(t *testing.T) {
	t.Parallel()

	r := &Receiver{maxPacketSize: 1400, localWindowSize: 8, minChecksumSize: 4}
	_, windowSize, _ := r.negotiate(1400, 64, 4)
	require.Equal(t, 8, windowSize)
}

func TestNegotiate_RaisesChecksumSizeToLocalMin(t *testing.T) {
	t.Parallel()

	r := &Receiver{maxPacketSize: 1400, localWindowSize: 16, minChecksumSize: 8}
	_, _, checksumSize := r.negotiate(1400, 16, 2)
	require.Equal(t, 8, checksumSize)
}

func TestNegotiate_ClampsChecksumSizeToProtocolMax(t *testing.T) {
	t.Parallel()

	r := &Receiver{maxPacketSize: 1400, localWindowSize: 16, minChecksumSize: 1}
	_, _, checksumSize := r.negotiate(1400, 16, 10000)
	require.Equal(t, protocol.MaxChecksumSize, checksumSize)
}

func TestNegotiate_AcceptsWithinBoundsUnchanged(t *testing.T) {
	t.Parallel()

	r := &Receiver{maxPacketSize: 1400, localWindowSize: 32, minChecksumSize: 4}
	packetSize, windowSize, checksumSize := r.negotiate(900, 12, 6)
	require.Equal(t, 900, packetSize)
	require.Equal(t, 12, windowSize)
	require.Equal(t, 6, checksumSize)
}

func TestNegotiate_ZeroProposalFallsBackToLocalDefaults(t *testing.T) {
	t.Parallel()

	r := &Receiver{maxPacketSize: 1400, localWindowSize: 16, minChecksumSize: 4}
	packetSize, windowSize, _ := r.negotiate(0, 0, 4)
	require.Equal(t, 1400, packetSize)
	require.Equal(t, 16, windowSize)
}
