package rrdtool

import "bytes"

// cappedBuffer keeps at most max bytes and records whether anything was dropped.
type cappedBuffer struct {
	buffer    bytes.Buffer
	max       int
	truncated bool
}

// Write appends data up to the cap and reports the full length so the child never sees EPIPE.
// Params: payload chunk bytes.
// Returns: len(payload) and nil.
func (b *cappedBuffer) Write(payload []byte) (int, error) {
	room := b.max - b.buffer.Len()
	if room <= 0 {
		if len(payload) > 0 {
			b.truncated = true
		}
		return len(payload), nil
	}
	if len(payload) > room {
		b.buffer.Write(payload[:room])
		b.truncated = true
		return len(payload), nil
	}
	b.buffer.Write(payload)
	return len(payload), nil
}

// Bytes returns buffered bytes.
func (b *cappedBuffer) Bytes() []byte {
	return b.buffer.Bytes()
}

// String returns buffered text.
func (b *cappedBuffer) String() string {
	return b.buffer.String()
}
