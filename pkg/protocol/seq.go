package protocol

// SeqSpace is the size of the 16-bit sequence/ack number space.
const SeqSpace = 1 << 16

// SeqAckNone is the wire sentinel meaning "no in-order delivery yet".
// Per spec §9, this value collides with a legitimate wrapped sequence
// number, so callers must track an explicit "has acked" boolean rather
// than relying on this constant alone to detect the initial state.
const SeqAckNone uint16 = 0xFFFF

// SeqDiff returns the signed forward distance from a to b, modulo
// SeqSpace, in [-32768, 32767]. A positive result means b is "newer"
// than a in the half-space sense used throughout the sliding window.
func SeqDiff(a, b uint16) int {
	d := int(b) - int(a)
	d &= SeqSpace - 1
	if d >= SeqSpace/2 {
		d -= SeqSpace
	}
	return d
}

// SeqLess reports whether a is strictly older than b under the
// half-space rule (forward distance a->b is positive and <= 32767).
func SeqLess(a, b uint16) bool {
	return SeqDiff(a, b) > 0
}

// SeqLessEq reports whether a is older than or equal to b.
func SeqLessEq(a, b uint16) bool {
	return a == b || SeqLess(a, b)
}

// SeqInWindow reports whether seq lies in [base, base+size) modulo
// SeqSpace, the half-open window the receiver uses for both the
// reorder buffer and the sender uses for in-flight bookkeeping.
func SeqInWindow(seq, base uint16, size int) bool {
	d := SeqDiff(base, seq)
	return d >= 0 && d < size
}
