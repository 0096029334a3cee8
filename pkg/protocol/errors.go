package protocol

import "errors"

var (
	// ErrTooShort is returned when a datagram is smaller than its declared
	// header, payload and checksum sizes require.
	ErrTooShort = errors.New("protocol: packet too short")

	// ErrBadChecksum is returned when the trailing checksum does not match
	// the preceding bytes.
	ErrBadChecksum = errors.New("protocol: checksum mismatch")

	// ErrUnknownKind is returned for a kind byte outside the known set.
	ErrUnknownKind = errors.New("protocol: unknown packet kind")

	// ErrPacketTooLarge is returned by Encode when the encoded packet would
	// exceed the negotiated packet size.
	ErrPacketTooLarge = errors.New("protocol: encoded packet exceeds negotiated packet size")

	// ErrInvalidChecksumSize is returned for a checksum size outside [1,64].
	ErrInvalidChecksumSize = errors.New("protocol: checksum size out of range")

	// ErrInvalidPayload is returned when a kind-specific payload cannot be
	// parsed (e.g. a malformed INIT payload).
	ErrInvalidPayload = errors.New("protocol: invalid kind-specific payload")
)
