package sender

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestSender_ExpiredOrdersBySeq(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	s := &Sender{
		clock:   clock,
		timeout: 100 * time.Millisecond,
		inFlight: map[uint16]*inFlightEntry{
			5: {sendTime: clock.Now()},
			3: {sendTime: clock.Now()},
			4: {sendTime: clock.Now()},
		},
	}

	clock.Advance(200 * time.Millisecond)
	got := s.expired(clock.Now())
	require.Equal(t, []uint16{3, 4, 5}, got)
}

func TestSender_ExpiredOrdersBySeqAcrossWrap(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	s := &Sender{
		clock:   clock,
		base:    65534,
		timeout: 100 * time.Millisecond,
		inFlight: map[uint16]*inFlightEntry{
			0:     {sendTime: clock.Now()},
			65535: {sendTime: clock.Now()},
			65534: {sendTime: clock.Now()},
		},
	}

	clock.Advance(200 * time.Millisecond)
	got := s.expired(clock.Now())
	require.Equal(t, []uint16{65534, 65535, 0}, got)
}

func TestSender_EarliestDeadline(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	s := &Sender{clock: clock, timeout: 50 * time.Millisecond, inFlight: map[uint16]*inFlightEntry{}}

	_, ok := s.earliestDeadline()
	require.False(t, ok)

	t0 := clock.Now()
	s.inFlight[1] = &inFlightEntry{sendTime: t0.Add(10 * time.Millisecond)}
	s.inFlight[2] = &inFlightEntry{sendTime: t0}

	deadline, ok := s.earliestDeadline()
	require.True(t, ok)
	require.Equal(t, t0.Add(50*time.Millisecond), deadline)
}
