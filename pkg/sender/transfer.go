package sender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/PatrikValkovic/UDPtransfer/pkg/metrics"
	"github.com/PatrikValkovic/UDPtransfer/pkg/protocol"
)

// transferLoop fills the window from the byte source, retransmits on
// timeout, and advances base as cumulative ACKs arrive, until the source
// is exhausted and every in-flight packet has been acknowledged.
func (s *Sender) transferLoop(ctx context.Context) error {
	buf := make([]byte, 65536)

	for {
		for !s.eofReached && protocol.SeqDiff(s.base, s.nextSeq) < s.windowSize {
			payload, err := s.readChunk()
			if err != nil {
				return fmt.Errorf("read source: %w", err)
			}
			if payload == nil {
				s.eofReached = true
				break
			}
			if err := s.emitData(payload); err != nil {
				return fmt.Errorf("emit data: %w", err)
			}
		}

		if s.eofReached && len(s.inFlight) == 0 {
			return nil
		}

		deadline, ok := s.earliestDeadline()
		if !ok {
			// No room and no in-flight packets to wait on: source isn't
			// eof yet but window is "full" with zero entries, which
			// cannot happen given the loop above; guard defensively.
			deadline = s.clock.Now().Add(s.timeout)
		}

		n, _, _, err := s.sock.ReceiveFrom(ctx, deadline, buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if err := s.retransmitExpired(); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("receive: %w", err)
		}

		if err := s.handleIncoming(buf[:n]); err != nil {
			return err
		}
	}
}

// readChunk reads one payload's worth of bytes from the source,
// prepending the filename-transport header to the very first chunk
// (SPEC_FULL.md §6.1). It returns (nil, nil) once the source is
// exhausted and there is nothing left to send.
func (s *Sender) readChunk() ([]byte, error) {
	budget := s.maxPayload()

	var prefix []byte
	if s.firstPacket {
		prefix = protocol.EncodeFilenameHeader(s.source.Name())
		budget -= len(prefix)
		if budget < 0 {
			budget = 0
		}
	}

	body := make([]byte, budget)
	n, err := s.source.Read(body)
	if err != nil && err != io.EOF {
		return nil, err
	}

	if n == 0 && err == io.EOF {
		if prefix == nil {
			return nil, nil
		}
		s.firstPacket = false
		return prefix, nil
	}

	s.firstPacket = false
	if prefix == nil {
		return body[:n], nil
	}
	return append(prefix, body[:n]...), nil
}

func (s *Sender) emitData(payload []byte) error {
	seq := s.nextSeq
	pkt := &protocol.Packet{Kind: protocol.KindData, ConnID: s.connID, Seq: seq, Ack: protocol.SeqAckNone, Payload: payload}
	if err := s.sendPacket(pkt); err != nil {
		return err
	}
	s.inFlight[seq] = &inFlightEntry{payload: payload, sendTime: s.clock.Now()}
	s.nextSeq++
	return nil
}

func (s *Sender) retransmitExpired() error {
	now := s.clock.Now()
	for _, seq := range s.expired(now) {
		e := s.inFlight[seq]
		e.retryCount++
		if e.retryCount > s.maxRetries {
			return fmt.Errorf("seq %d exceeded max retries (%d)", seq, s.maxRetries)
		}
		pkt := &protocol.Packet{Kind: protocol.KindData, ConnID: s.connID, Seq: seq, Ack: protocol.SeqAckNone, Payload: e.payload}
		if err := s.sendPacket(pkt); err != nil {
			return err
		}
		e.sendTime = now
		metrics.Retransmissions.WithLabelValues("sender").Inc()
	}
	return nil
}

func (s *Sender) handleIncoming(raw []byte) error {
	pkt, err := protocol.Decode(raw, s.checksumSize)
	if err != nil {
		metrics.DroppedPackets.WithLabelValues("sender", "decode").Inc()
		return nil
	}
	if pkt.ConnID != s.connID {
		metrics.DroppedPackets.WithLabelValues("sender", "conn_id_mismatch").Inc()
		return nil
	}

	switch pkt.Kind {
	case protocol.KindErr:
		s.replyErr()
		return errors.New("received ERR from receiver")
	case protocol.KindData:
		s.applyAck(pkt.Ack)
		return nil
	default:
		metrics.DroppedPackets.WithLabelValues("sender", "unexpected_kind").Inc()
		return nil
	}
}

// applyAck advances base on a valid cumulative ACK. The wire sentinel
// SeqAckNone is not compared against by value: a receiver sends it only
// before its first in-order delivery, while base is still 0, where it
// equals base-1 and the range check below treats it as a duplicate ACK.
// After the sequence space wraps, 65535 acknowledges seq 65535 like any
// other number.
func (s *Sender) applyAck(ack uint16) {
	// Valid range is [base-1, next_seq-1]: ack must not be older than
	// one-before-base, and must not be newer than the last sent seq.
	if protocol.SeqDiff(ack, s.base) > 1 {
		// ack is older than base-1: stale/duplicate, ignore.
		return
	}
	if protocol.SeqDiff(s.nextSeq, ack) >= 0 {
		// ack claims a sequence never sent (ack >= nextSeq): ignore.
		return
	}
	newBase := ack + 1
	if protocol.SeqDiff(s.base, newBase) <= 0 {
		return
	}
	for seq := s.base; seq != newBase; seq++ {
		delete(s.inFlight, seq)
	}
	s.base = newBase
}
