package protocol

import "encoding/binary"

// InitChecksumSize is the fixed checksum length used only for INIT and
// INIT-reply packets. The application checksum_size used for DATA/END/ERR
// is itself negotiated inside the INIT exchange, so the handshake frame
// can't depend on it circularly; INIT always uses this constant instead,
// known to both sides independent of negotiation.
const InitChecksumSize = 4

// InitRequestSize is the fixed payload size of an INIT request.
const InitRequestSize = 2 + 2 + 2

// InitRequest is the sender's proposed connection parameters, carried in
// an INIT packet's payload. conn_id on the wrapping Packet is always 0
// for a request.
type InitRequest struct {
	ProposedPacketSize   uint16
	ProposedWindowSize   uint16
	ProposedChecksumSize uint16
}

func (r InitRequest) Marshal() []byte {
	buf := make([]byte, InitRequestSize)
	binary.BigEndian.PutUint16(buf[0:2], r.ProposedPacketSize)
	binary.BigEndian.PutUint16(buf[2:4], r.ProposedWindowSize)
	binary.BigEndian.PutUint16(buf[4:6], r.ProposedChecksumSize)
	return buf
}

func UnmarshalInitRequest(payload []byte) (InitRequest, error) {
	if len(payload) != InitRequestSize {
		return InitRequest{}, ErrInvalidPayload
	}
	return InitRequest{
		ProposedPacketSize:   binary.BigEndian.Uint16(payload[0:2]),
		ProposedWindowSize:   binary.BigEndian.Uint16(payload[2:4]),
		ProposedChecksumSize: binary.BigEndian.Uint16(payload[4:6]),
	}, nil
}

// InitReplySize is the fixed payload size of an INIT reply.
const InitReplySize = 2 + 2 + 2 + 1

// InitReply is the receiver's response to INIT: either the negotiated
// parameters (RetryRequired=false, ConnID assigned on the wrapping
// Packet), or a request to retry with a smaller INIT because the
// original request payload itself could not be parsed/fit a datagram
// (RetryRequired=true).
type InitReply struct {
	NegotiatedPacketSize   uint16
	NegotiatedWindowSize   uint16
	NegotiatedChecksumSize uint16
	RetryRequired          bool
}

func (r InitReply) Marshal() []byte {
	buf := make([]byte, InitReplySize)
	binary.BigEndian.PutUint16(buf[0:2], r.NegotiatedPacketSize)
	binary.BigEndian.PutUint16(buf[2:4], r.NegotiatedWindowSize)
	binary.BigEndian.PutUint16(buf[4:6], r.NegotiatedChecksumSize)
	if r.RetryRequired {
		buf[6] = 1
	}
	return buf
}

func UnmarshalInitReply(payload []byte) (InitReply, error) {
	if len(payload) != InitReplySize {
		return InitReply{}, ErrInvalidPayload
	}
	return InitReply{
		NegotiatedPacketSize:   binary.BigEndian.Uint16(payload[0:2]),
		NegotiatedWindowSize:   binary.BigEndian.Uint16(payload[2:4]),
		NegotiatedChecksumSize: binary.BigEndian.Uint16(payload[4:6]),
		RetryRequired:          payload[6] != 0,
	}, nil
}
