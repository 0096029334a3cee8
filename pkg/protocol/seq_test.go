package protocol_test

import (
	"testing"

	"github.com/PatrikValkovic/UDPtransfer/pkg/protocol"
	"github.com/stretchr/testify/require"
)

func TestSeqDiff(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1, protocol.SeqDiff(0, 1))
	require.Equal(t, -1, protocol.SeqDiff(1, 0))
	require.Equal(t, 0, protocol.SeqDiff(42, 42))
	// Wrap-around: 65535 -> 0 is a forward step of 1.
	require.Equal(t, 1, protocol.SeqDiff(65535, 0))
	require.Equal(t, -1, protocol.SeqDiff(0, 65535))
}

func TestSeqLess(t *testing.T) {
	t.Parallel()

	require.True(t, protocol.SeqLess(0, 1))
	require.False(t, protocol.SeqLess(1, 0))
	require.False(t, protocol.SeqLess(5, 5))
	require.True(t, protocol.SeqLess(65535, 0))
}

func TestSeqLessEq(t *testing.T) {
	t.Parallel()

	require.True(t, protocol.SeqLessEq(5, 5))
	require.True(t, protocol.SeqLessEq(5, 6))
	require.False(t, protocol.SeqLessEq(6, 5))
}

func TestSeqInWindow(t *testing.T) {
	t.Parallel()

	require.True(t, protocol.SeqInWindow(10, 10, 4))
	require.True(t, protocol.SeqInWindow(13, 10, 4))
	require.False(t, protocol.SeqInWindow(14, 10, 4))
	require.False(t, protocol.SeqInWindow(9, 10, 4))

	// Window straddling the wrap point.
	require.True(t, protocol.SeqInWindow(65535, 65534, 4))
	require.True(t, protocol.SeqInWindow(1, 65534, 4))
	require.False(t, protocol.SeqInWindow(2, 65534, 4))
}
