package protocol

import "encoding/binary"

// FilenameHeaderSize returns the size of the filename-transport header
// this implementation prepends to the very first DATA payload of a
// connection: a uint16be length followed by that many bytes of UTF-8
// filename. See SPEC_FULL.md §6.1 for the convention this resolves.
func FilenameHeaderSize(name string) int {
	return 2 + len(name)
}

// EncodeFilenameHeader writes the length-prefixed filename header.
func EncodeFilenameHeader(name string) []byte {
	buf := make([]byte, 2+len(name))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(name)))
	copy(buf[2:], name)
	return buf
}

// DecodeFilenameHeader parses a length-prefixed filename header from the
// front of buf, returning the name and the number of bytes it consumed.
// It returns ErrInvalidPayload if buf is too short for its declared
// length prefix.
func DecodeFilenameHeader(buf []byte) (name string, consumed int, err error) {
	if len(buf) < 2 {
		return "", 0, ErrInvalidPayload
	}
	n := int(binary.BigEndian.Uint16(buf[0:2]))
	if len(buf) < 2+n {
		return "", 0, ErrInvalidPayload
	}
	return string(buf[2 : 2+n]), 2 + n, nil
}
