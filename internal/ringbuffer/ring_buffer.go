// Package ringbuffer implements the single-producer/single-consumer
// sample ring described in spec.md §4.1. It is the only structure shared
// between the audio context and the processing context (spec.md §5): the
// audio callback calls Push, the 44 Hz processing tick calls SnapshotLast.
package ringbuffer

import "sync/atomic"

// Capacity is fixed at 4x the FFT frame size per spec.md §4.1.
const Capacity = 16384

// RingBuffer is a fixed-capacity circular buffer of float32 samples. Push
// is wait-free and never allocates; SnapshotLast copies out the most
// recently pushed window without ever blocking the producer.
//
// The write cursor is the only state shared across goroutines and is
// accessed exclusively through atomic.Uint64, giving Push a lock-free
// fast path and SnapshotLast a consistent (if occasionally slightly
// stale, which is fine — see spec.md §4.1) read of "the last N samples".
type RingBuffer struct {
	buf    [Capacity]float32
	cursor atomic.Uint64 // total samples ever written
}

// New returns an empty RingBuffer. The zero value is also usable, but New
// is provided for symmetry with the rest of the engine's constructors.
func New() *RingBuffer {
	return &RingBuffer{}
}

// Push appends samples to the buffer. On overrun (more samples pushed
// than Capacity since the last read) the oldest samples are silently
// discarded — the producer is canonical, per spec.md §4.1. Push never
// allocates and never blocks.
func (r *RingBuffer) Push(samples []float32) {
	cur := r.cursor.Load()
	for _, s := range samples {
		r.buf[cur%Capacity] = s
		cur++
	}
	r.cursor.Store(cur)
}

// SnapshotLast copies the N most recently pushed samples into dst
// (len(dst) determines N). If fewer than N samples have ever been
// pushed, the prefix is zero-filled. Safe to call concurrently with Push;
// it may observe a cursor advanced partway through the copy, which only
// ever makes the snapshot "more recent", never torn in a way that breaks
// the sliding-window contract in practice for the read pattern used here
// (single consumer, called no faster than the producer advances).
func (r *RingBuffer) SnapshotLast(dst []float32) {
	n := uint64(len(dst))
	cur := r.cursor.Load()

	if cur < n {
		zeroed := n - cur
		for i := uint64(0); i < zeroed; i++ {
			dst[i] = 0
		}
		n = cur
		dst = dst[zeroed:]
	}

	start := cur - n
	for i := uint64(0); i < n; i++ {
		dst[i] = r.buf[(start+i)%Capacity]
	}
}

// Written reports the total number of samples ever pushed. Useful for
// diagnostics and tests; not part of the hot path.
func (r *RingBuffer) Written() uint64 {
	return r.cursor.Load()
}
