package sender

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/PatrikValkovic/UDPtransfer/pkg/metrics"
	"github.com/PatrikValkovic/UDPtransfer/pkg/protocol"
)

// closeLoop sends END and retries on timeout until the receiver's END
// reply arrives or MaxRetries is exhausted.
func (s *Sender) closeLoop(ctx context.Context) error {
	s.closing = true
	buf := make([]byte, 65536)

	end := &protocol.Packet{Kind: protocol.KindEnd, ConnID: s.connID, Seq: s.nextSeq, Ack: protocol.SeqAckNone}
	if err := s.sendPacket(end); err != nil {
		return fmt.Errorf("send end: %w", err)
	}
	sendTime := s.clock.Now()
	retries := 0

	for {
		deadline := sendTime.Add(s.timeout)
		n, _, _, err := s.sock.ReceiveFrom(ctx, deadline, buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				retries++
				if retries > s.maxRetries {
					return fmt.Errorf("close: exceeded max retries (%d) awaiting END", s.maxRetries)
				}
				if err := s.sendPacket(end); err != nil {
					return fmt.Errorf("resend end: %w", err)
				}
				sendTime = s.clock.Now()
				metrics.Retransmissions.WithLabelValues("sender").Inc()
				continue
			}
			return fmt.Errorf("receive: %w", err)
		}

		pkt, err := protocol.Decode(buf[:n], s.checksumSize)
		if err != nil {
			metrics.DroppedPackets.WithLabelValues("sender", "decode").Inc()
			continue
		}
		if pkt.ConnID != s.connID {
			metrics.DroppedPackets.WithLabelValues("sender", "conn_id_mismatch").Inc()
			continue
		}
		switch pkt.Kind {
		case protocol.KindEnd:
			return nil
		case protocol.KindErr:
			s.replyErr()
			return errors.New("received ERR while closing")
		case protocol.KindData:
			// Duplicate/late cumulative ACK for already-flushed data:
			// harmless during close, per graceful-close invariant.
			continue
		default:
			metrics.DroppedPackets.WithLabelValues("sender", "unexpected_kind").Inc()
			continue
		}
	}
}
