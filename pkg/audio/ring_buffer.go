// Package audio holds PCM16LE helpers shared by the segmenter, the
// capabilities and the transport.
package audio

// RingBuffer keeps the most recent N bytes of PCM audio. It backs the
// segmenter's pre-roll: silence heard just before speech_start can be
// prepended to the utterance.
//
// RingBuffer is not safe for concurrent use; it is owned by a single
// Segmenter.
type RingBuffer struct {
	data     []byte
	writePos int
	size     int
}

// NewRingBuffer creates a ring buffer holding durationMs of 16-bit mono audio
// at sampleRate. Zero duration yields a buffer that discards every write.
func NewRingBuffer(sampleRate, durationMs int) *RingBuffer {
	return &RingBuffer{data: make([]byte, BytesForDuration(sampleRate, durationMs))}
}

// Write appends p, overwriting the oldest bytes once the buffer is full.
func (rb *RingBuffer) Write(p []byte) {
	capacity := len(rb.data)
	if capacity == 0 || len(p) == 0 {
		return
	}
	if len(p) >= capacity {
		copy(rb.data, p[len(p)-capacity:])
		rb.writePos = 0
		rb.size = capacity
		return
	}

	n := copy(rb.data[rb.writePos:], p)
	if n < len(p) {
		copy(rb.data, p[n:])
	}
	rb.writePos = (rb.writePos + len(p)) % capacity
	rb.size = min(rb.size+len(p), capacity)
}

// Bytes returns a copy of the buffered audio, oldest first.
func (rb *RingBuffer) Bytes() []byte {
	if rb.size == 0 {
		return nil
	}
	out := make([]byte, rb.size)
	if rb.size < len(rb.data) {
		copy(out, rb.data[:rb.size])
		return out
	}
	n := copy(out, rb.data[rb.writePos:])
	copy(out[n:], rb.data[:rb.writePos])
	return out
}

// Reset empties the buffer.
func (rb *RingBuffer) Reset() {
	rb.writePos = 0
	rb.size = 0
}

// Len returns the number of buffered bytes.
func (rb *RingBuffer) Len() int { return rb.size }

// Cap returns the capacity in bytes.
func (rb *RingBuffer) Cap() int { return len(rb.data) }
