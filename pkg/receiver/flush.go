package receiver

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/PatrikValkovic/UDPtransfer/pkg/metrics"
	"github.com/PatrikValkovic/UDPtransfer/pkg/protocol"
)

// flush writes the reassembled file to the sink, replies END, and keeps
// replying to duplicate ENDs for EndGrace in case the sender's copy of
// our first reply was lost (spec §4.3's graceful-close grace period).
func (r *Receiver) flush(ctx context.Context) error {
	name := r.filename
	if name == "" {
		name = fmt.Sprintf("conn-%d.bin", r.connID)
	}
	if err := r.sink.WriteAll(name, r.assembled); err != nil {
		return fmt.Errorf("write sink: %w", err)
	}

	if err := r.sendEnd(); err != nil {
		return err
	}

	buf := make([]byte, 65536)
	deadline := r.clock.Now().Add(r.endGrace)

	for {
		n, _, _, err := r.sock.ReceiveFrom(ctx, deadline, buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		pkt, err := protocol.Decode(buf[:n], r.checksumSize)
		if err != nil {
			metrics.DroppedPackets.WithLabelValues("receiver", "decode").Inc()
			continue
		}
		if pkt.ConnID != r.connID {
			continue
		}
		switch pkt.Kind {
		case protocol.KindEnd:
			if err := r.sendEnd(); err != nil {
				return err
			}
		case protocol.KindErr:
			return errors.New("received ERR while flushing")
		default:
			// Stray DATA retransmits can still arrive during the grace
			// window; ignore, the sender already has our final ACK.
		}
	}
}

func (r *Receiver) sendEnd() error {
	pkt := &protocol.Packet{Kind: protocol.KindEnd, ConnID: r.connID, Ack: protocol.SeqAckNone}
	out, err := protocol.Encode(pkt, r.checksumSize, r.packetSize)
	if err != nil {
		return fmt.Errorf("encode end: %w", err)
	}
	if _, err := r.sock.SendTo(r.peer, out); err != nil {
		return fmt.Errorf("send end: %w", err)
	}
	return nil
}
