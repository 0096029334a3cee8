package sender

import (
	"time"

	"github.com/PatrikValkovic/UDPtransfer/pkg/protocol"
)

// inFlightEntry tracks one unacknowledged DATA packet.
type inFlightEntry struct {
	payload    []byte
	sendTime   time.Time
	retryCount int
}

// earliestDeadline returns the earliest sendTime+timeout among all
// in-flight entries, and whether any entry exists at all.
func (s *Sender) earliestDeadline() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, e := range s.inFlight {
		d := e.sendTime.Add(s.timeout)
		if !found || d.Before(earliest) {
			earliest = d
			found = true
		}
	}
	return earliest, found
}

// expired returns the sequence numbers of in-flight packets whose
// deadline has passed as of now, in ascending seq order for deterministic
// retransmission order.
func (s *Sender) expired(now time.Time) []uint16 {
	var out []uint16
	for seq, e := range s.inFlight {
		if !e.sendTime.Add(s.timeout).After(now) {
			out = append(out, seq)
		}
	}
	// Order by age relative to base so the oldest unacknowledged packet
	// retransmits first.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && protocol.SeqLess(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
