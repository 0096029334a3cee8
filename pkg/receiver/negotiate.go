package receiver

import "github.com/PatrikValkovic/UDPtransfer/pkg/protocol"

// initChecksumSize is shared with pkg/sender via protocol.InitChecksumSize
// so both sides frame INIT/INIT-reply identically before checksum_size is
// negotiated.
const initChecksumSize = protocol.InitChecksumSize

func (r *Receiver) negotiate(proposedPacketSize, proposedWindowSize, proposedChecksumSize int) (packetSize, windowSize, checksumSize int) {
	packetSize = proposedPacketSize
	if packetSize > r.maxPacketSize || packetSize <= 0 {
		packetSize = r.maxPacketSize
	}

	windowSize = proposedWindowSize
	if windowSize > r.localWindowSize || windowSize <= 0 {
		windowSize = r.localWindowSize
	}

	checksumSize = proposedChecksumSize
	if checksumSize < r.minChecksumSize {
		checksumSize = r.minChecksumSize
	}
	if checksumSize > protocol.MaxChecksumSize {
		checksumSize = protocol.MaxChecksumSize
	}

	return packetSize, windowSize, checksumSize
}
