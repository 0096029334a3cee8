// Package protocol implements the wire framing for UDPtransfer: packet
// kinds, header layout, checksum, and the kind-specific payload formats
// used by the sender, receiver and broker.
package protocol

import "encoding/binary"

// Kind discriminates the four packet types on the wire.
type Kind uint8

const (
	KindInit Kind = iota
	KindData
	KindEnd
	KindErr
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "INIT"
	case KindData:
		return "DATA"
	case KindEnd:
		return "END"
	case KindErr:
		return "ERR"
	default:
		return "UNKNOWN"
	}
}

func (k Kind) valid() bool {
	return k <= KindErr
}

// HeaderSize is the fixed portion of every datagram: kind(1) + conn_id(2)
// + seq(2) + ack(2) + payload_len(2).
const HeaderSize = 1 + 2 + 2 + 2 + 2

// Packet is the logical, decoded form of a single datagram.
type Packet struct {
	Kind    Kind
	ConnID  uint16
	Seq     uint16
	Ack     uint16
	Payload []byte
}

// Encode serializes p into a new buffer, appending a checksum of
// checksumSize bytes. It fails if checksumSize is out of range or the
// resulting buffer would exceed maxPacketSize (the negotiated
// packet_size), per the codec's size discipline.
func Encode(p *Packet, checksumSize, maxPacketSize int) ([]byte, error) {
	if !ValidChecksumSize(checksumSize) {
		return nil, ErrInvalidChecksumSize
	}
	total := HeaderSize + len(p.Payload) + checksumSize
	if maxPacketSize > 0 && total > maxPacketSize {
		return nil, ErrPacketTooLarge
	}

	buf := make([]byte, total)
	buf[0] = byte(p.Kind)
	binary.BigEndian.PutUint16(buf[1:3], p.ConnID)
	binary.BigEndian.PutUint16(buf[3:5], p.Seq)
	binary.BigEndian.PutUint16(buf[5:7], p.Ack)
	binary.BigEndian.PutUint16(buf[7:9], uint16(len(p.Payload)))
	copy(buf[HeaderSize:], p.Payload)

	sum := Checksum(buf[:HeaderSize+len(p.Payload)], checksumSize)
	copy(buf[HeaderSize+len(p.Payload):], sum)

	return buf, nil
}

// Decode parses buf as a single datagram framed with the given
// checksumSize. buf may be truncated, corrupted, or carry trailing
// garbage; Decode reports ErrTooShort, ErrBadChecksum or ErrUnknownKind
// for those cases rather than panicking. Per spec §4.1, all three are
// meant to be handled by the caller as "drop and wait for retransmit".
func Decode(buf []byte, checksumSize int) (*Packet, error) {
	if !ValidChecksumSize(checksumSize) {
		return nil, ErrInvalidChecksumSize
	}
	if len(buf) < HeaderSize+checksumSize {
		return nil, ErrTooShort
	}

	payloadLen := int(binary.BigEndian.Uint16(buf[7:9]))
	want := HeaderSize + payloadLen + checksumSize
	if len(buf) < want {
		return nil, ErrTooShort
	}
	// Ignore any trailing bytes past the declared frame (oversized
	// datagram); only the declared frame is checksummed and parsed.
	buf = buf[:want]

	body := buf[:HeaderSize+payloadLen]
	gotSum := buf[HeaderSize+payloadLen:]
	wantSum := Checksum(body, checksumSize)
	if !constantTimeEqual(gotSum, wantSum) {
		return nil, ErrBadChecksum
	}

	kind := Kind(buf[0])
	if !kind.valid() {
		return nil, ErrUnknownKind
	}

	p := &Packet{
		Kind:   kind,
		ConnID: binary.BigEndian.Uint16(buf[1:3]),
		Seq:    binary.BigEndian.Uint16(buf[3:5]),
		Ack:    binary.BigEndian.Uint16(buf[5:7]),
	}
	if payloadLen > 0 {
		p.Payload = make([]byte, payloadLen)
		copy(p.Payload, body[HeaderSize:])
	}
	return p, nil
}

// MaxPayload returns the usable DATA payload per packet for a negotiated
// packet_size and checksum_size: packet_size - header_size - checksum_size.
func MaxPayload(packetSize, checksumSize int) int {
	n := packetSize - HeaderSize - checksumSize
	if n < 0 {
		return 0
	}
	return n
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
