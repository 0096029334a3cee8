package receiver

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/PatrikValkovic/UDPtransfer/pkg/metrics"
	"github.com/PatrikValkovic/UDPtransfer/pkg/protocol"
)

// receiveLoop accepts DATA packets into the reorder buffer and
// contiguous-drains them into assembled, acknowledging cumulatively,
// until an END arrives.
func (r *Receiver) receiveLoop(ctx context.Context) error {
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

		pkt, err := protocol.Decode(buf[:n], r.checksumSize)
		if err != nil {
			metrics.DroppedPackets.WithLabelValues("receiver", "decode").Inc()
			continue
		}

		if pkt.ConnID != r.connID {
			r.sendErr(from)
			return fmt.Errorf("conn_id mismatch: got %d want %d", pkt.ConnID, r.connID)
		}

		switch pkt.Kind {
		case protocol.KindData:
			r.handleData(pkt, from)
		case protocol.KindEnd:
			return nil
		case protocol.KindErr:
			r.sendErr(from)
			return errors.New("received ERR from sender")
		default:
			metrics.DroppedPackets.WithLabelValues("receiver", "unexpected_kind").Inc()
		}
	}
}

func (r *Receiver) handleData(pkt *protocol.Packet, from *net.UDPAddr) {
	switch {
	case pkt.Seq == r.expected:
		r.deliver(pkt.Seq, pkt.Payload)
		r.drainReorderBuffer()
		r.sendAck(from)

	case protocol.SeqInWindow(pkt.Seq, r.expected+1, r.windowSize-1):
		if _, exists := r.reorderBuffer[pkt.Seq]; !exists {
			r.reorderBuffer[pkt.Seq] = pkt.Payload
		}
		metrics.ReorderBufferSize.Set(float64(len(r.reorderBuffer)))
		r.sendAck(from)

	default:
		// Outside the window, including already-delivered sequences:
		// repeat the cumulative ACK so the sender's base can advance
		// even though this particular retransmit was redundant.
		metrics.DroppedPackets.WithLabelValues("receiver", "out_of_window").Inc()
		r.sendAck(from)
	}
}

// deliver appends one in-order payload to assembled, extracting the
// filename-transport header from the very first delivered payload.
func (r *Receiver) deliver(seq uint16, payload []byte) {
	if !r.filenameKnown {
		name, consumed, err := protocol.DecodeFilenameHeader(payload)
		if err == nil {
			r.filename = name
			payload = payload[consumed:]
		}
		r.filenameKnown = true
	}
	r.assembled = append(r.assembled, payload...)
	r.expected = seq + 1
	r.hasDelivered = true
	r.ackToSend = seq
}

// drainReorderBuffer advances expected/ackToSend through any contiguous
// run now available in the reorder buffer.
func (r *Receiver) drainReorderBuffer() {
	for {
		payload, ok := r.reorderBuffer[r.expected]
		if !ok {
			return
		}
		delete(r.reorderBuffer, r.expected)
		r.deliver(r.expected, payload)
		metrics.ReorderBufferSize.Set(float64(len(r.reorderBuffer)))
	}
}

func (r *Receiver) sendAck(to *net.UDPAddr) {
	ack := protocol.SeqAckNone
	if r.hasDelivered {
		ack = r.ackToSend
	}
	pkt := &protocol.Packet{Kind: protocol.KindData, ConnID: r.connID, Ack: ack}
	out, err := protocol.Encode(pkt, r.checksumSize, r.packetSize)
	if err != nil {
		return
	}
	_, _ = r.sock.SendTo(to, out)
}

func (r *Receiver) sendErr(to *net.UDPAddr) {
	pkt := &protocol.Packet{Kind: protocol.KindErr, ConnID: r.connID}
	out, err := protocol.Encode(pkt, r.checksumSize, 0)
	if err != nil {
		return
	}
	_, _ = r.sock.SendTo(to, out)
}
