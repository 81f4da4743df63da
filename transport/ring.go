package transport

import "sync"

// DefaultRingSize is the receive buffer capacity used when none is given.
const DefaultRingSize = 1024

// RingBuffer is a fixed-capacity byte FIFO shared by a producer (the reader
// goroutine) and a consumer (the programmer). When full, Add overwrites the
// oldest unread bytes and counts them in Overruns.
//
// RingBuffer is safe for concurrent use.
type RingBuffer struct {
	mu       sync.Mutex
	buf      []byte
	rd       uint64
	wr       uint64
	overruns uint64
}

// NewRingBuffer returns a buffer holding up to capacity bytes. A
// non-positive capacity selects DefaultRingSize.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &RingBuffer{buf: make([]byte, capacity)}
}

// Add appends p. If p does not fit, the oldest bytes are dropped so that the
// newest Cap() bytes are kept.
func (r *RingBuffer) Add(p []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := uint64(len(r.buf))
	for _, b := range p {
		r.buf[r.wr%size] = b
		r.wr++
	}
	if r.wr-r.rd > size {
		r.overruns += r.wr - r.rd - size
		r.rd = r.wr - size
	}
	return len(p)
}

// Get moves up to len(p) buffered bytes into p and returns how many were
// copied. It never blocks.
func (r *RingBuffer) Get(p []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := uint64(len(r.buf))
	n := 0
	for n < len(p) && r.rd < r.wr {
		p[n] = r.buf[r.rd%size]
		r.rd++
		n++
	}
	return n
}

// Clear discards all buffered bytes.
func (r *RingBuffer) Clear() {
	r.mu.Lock()
	r.rd = r.wr
	r.mu.Unlock()
}

// Len returns the number of unread bytes.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.wr - r.rd)
}

// Cap returns the buffer capacity.
func (r *RingBuffer) Cap() int {
	return len(r.buf)
}

// Overruns returns how many unread bytes have been overwritten so far.
func (r *RingBuffer) Overruns() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overruns
}
