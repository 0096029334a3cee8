package receiver

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/PatrikValkovic/UDPtransfer/pkg/metrics"
	"github.com/PatrikValkovic/UDPtransfer/pkg/protocol"
)

// listen waits for an INIT, mints a connection id, negotiates parameters
// (capping packet_size, raising checksum_size, as spec §4.3 directs), and
// replies. It loops on truncated or undecodable INITs, since those are
// transient wire errors the sender will retry past.
func (r *Receiver) listen(ctx context.Context) error {
	buf := make([]byte, 65536)

	for {
		deadline := r.clock.Now().Add(r.idleTimeout)
		n, from, _, err := r.sock.ReceiveFrom(ctx, deadline, buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			return fmt.Errorf("receive: %w", err)
		}

		raw := buf[:n]
		pkt, err := protocol.Decode(raw, initChecksumSize)
		if err != nil {
			if errors.Is(err, protocol.ErrTooShort) {
				r.replyInitRetry(from)
				metrics.DroppedPackets.WithLabelValues("receiver", "init_truncated").Inc()
				continue
			}
			metrics.DroppedPackets.WithLabelValues("receiver", "decode").Inc()
			continue
		}
		if pkt.Kind != protocol.KindInit {
			metrics.DroppedPackets.WithLabelValues("receiver", "unexpected_kind").Inc()
			continue
		}

		req, err := protocol.UnmarshalInitRequest(pkt.Payload)
		if err != nil {
			r.replyInitRetry(from)
			metrics.DroppedPackets.WithLabelValues("receiver", "bad_payload").Inc()
			continue
		}

		r.peer = from
		r.connID = r.mintConnID()
		r.packetSize, r.windowSize, r.checksumSize = r.negotiate(
			int(req.ProposedPacketSize), int(req.ProposedWindowSize), int(req.ProposedChecksumSize))

		reply := protocol.InitReply{
			NegotiatedPacketSize:   uint16(r.packetSize),
			NegotiatedWindowSize:   uint16(r.windowSize),
			NegotiatedChecksumSize: uint16(r.checksumSize),
		}
		replyPkt := &protocol.Packet{Kind: protocol.KindInit, ConnID: r.connID, Payload: reply.Marshal()}
		out, err := protocol.Encode(replyPkt, initChecksumSize, 0)
		if err != nil {
			return fmt.Errorf("encode init reply: %w", err)
		}
		if _, err := r.sock.SendTo(from, out); err != nil {
			return fmt.Errorf("send init reply: %w", err)
		}

		r.log.Info("receiver: negotiated connection", "conn_id", r.connID, "peer", from,
			"packet_size", r.packetSize, "window_size", r.windowSize, "checksum_size", r.checksumSize)
		return nil
	}
}

func (r *Receiver) replyInitRetry(to *net.UDPAddr) {
	reply := protocol.InitReply{RetryRequired: true}
	pkt := &protocol.Packet{Kind: protocol.KindInit, ConnID: 0, Payload: reply.Marshal()}
	out, err := protocol.Encode(pkt, initChecksumSize, 0)
	if err != nil {
		return
	}
	_, _ = r.sock.SendTo(to, out)
}
