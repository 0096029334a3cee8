package sender

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/PatrikValkovic/UDPtransfer/pkg/metrics"
	"github.com/PatrikValkovic/UDPtransfer/pkg/protocol"
)

// minProposedPacketSize is the floor INIT renegotiation will not shrink
// proposedPacketSize below, even after repeated retry-required replies.
const minProposedPacketSize = 128

// handshake sends INIT and retries until it gets back either a
// renegotiated parameter set plus a conn_id, or a retry-required reply
// (in which case it shrinks the proposal and tries again), or exhausts
// MaxRetries.
func (s *Sender) handshake(ctx context.Context) error {
	buf := make([]byte, 65536)
	retries := 0

	for {
		req := protocol.InitRequest{
			ProposedPacketSize:   uint16(s.packetSize),
			ProposedWindowSize:   uint16(s.windowSize),
			ProposedChecksumSize: uint16(s.checksumSize),
		}
		pkt := &protocol.Packet{Kind: protocol.KindInit, ConnID: 0, Payload: req.Marshal()}
		out, err := protocol.Encode(pkt, protocol.InitChecksumSize, 0)
		if err != nil {
			return fmt.Errorf("encode init: %w", err)
		}
		if _, err := s.sock.SendTo(s.remote, out); err != nil {
			return fmt.Errorf("send init: %w", err)
		}

		deadline := s.clock.Now().Add(s.timeout)
		n, _, _, err := s.sock.ReceiveFrom(ctx, deadline, buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				retries++
				if retries > s.maxRetries {
					return fmt.Errorf("init: exceeded max retries (%d)", s.maxRetries)
				}
				metrics.Retransmissions.WithLabelValues("sender").Inc()
				continue
			}
			return fmt.Errorf("receive init reply: %w", err)
		}

		reply, err := protocol.Decode(buf[:n], protocol.InitChecksumSize)
		if err != nil {
			// Transient wire error: keep waiting within this attempt's
			// budget by simply retrying the send/receive cycle.
			metrics.DroppedPackets.WithLabelValues("sender", "decode").Inc()
			retries++
			if retries > s.maxRetries {
				return fmt.Errorf("init: exceeded max retries waiting for a decodable reply")
			}
			continue
		}
		if reply.Kind == protocol.KindErr {
			return fmt.Errorf("init: receiver rejected with ERR")
		}
		if reply.Kind != protocol.KindInit {
			metrics.DroppedPackets.WithLabelValues("sender", "unexpected_kind").Inc()
			continue
		}

		negotiated, err := protocol.UnmarshalInitReply(reply.Payload)
		if err != nil {
			metrics.DroppedPackets.WithLabelValues("sender", "bad_payload").Inc()
			continue
		}

		if negotiated.RetryRequired {
			s.packetSize = shrink(s.packetSize)
			retries++
			if retries > s.maxRetries {
				return fmt.Errorf("init: receiver kept requesting retry down to minimum packet size")
			}
			s.log.Debug("sender: init truncated, retrying smaller", "packet_size", s.packetSize)
			continue
		}

		s.connID = reply.ConnID
		s.packetSize = int(negotiated.NegotiatedPacketSize)
		s.windowSize = int(negotiated.NegotiatedWindowSize)
		s.checksumSize = int(negotiated.NegotiatedChecksumSize)
		s.log.Info("sender: negotiated connection", "conn_id", s.connID, "packet_size", s.packetSize, "window_size", s.windowSize, "checksum_size", s.checksumSize)
		return nil
	}
}

func shrink(packetSize int) int {
	n := packetSize / 2
	if n < minProposedPacketSize {
		n = minProposedPacketSize
	}
	return n
}
