package ffmpeg

import "sync"

// stderrRingSize is how much trailing stderr output is retained per process.
const stderrRingSize = 64 * 1024

// ringBuffer keeps the last capacity bytes written to it.
type ringBuffer struct {
	mu       sync.Mutex
	buf      []byte
	start    int
	length   int
	capacity int
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		buf:      make([]byte, capacity),
		capacity: capacity,
	}
}

// Write implements io.Writer. It never fails; older bytes are discarded
// once the buffer is full.
func (r *ringBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(p)
	if n >= r.capacity {
		copy(r.buf, p[n-r.capacity:])
		r.start = 0
		r.length = r.capacity
		return n, nil
	}

	for _, b := range p {
		idx := (r.start + r.length) % r.capacity
		r.buf[idx] = b
		if r.length < r.capacity {
			r.length++
		} else {
			r.start = (r.start + 1) % r.capacity
		}
	}
	return n, nil
}

// Bytes returns a copy of the retained tail.
func (r *ringBuffer) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]byte, r.length)
	for i := 0; i < r.length; i++ {
		out[i] = r.buf[(r.start+i)%r.capacity]
	}
	return out
}

// String returns the retained tail as a string.
func (r *ringBuffer) String() string {
	return string(r.Bytes())
}
