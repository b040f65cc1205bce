package flow

// ring is a fixed-capacity FIFO buffer backed by a single arena slice.
// Eviction is structural: once full, every push overwrites the oldest slot,
// so memory stays bounded no matter how long the stream runs.
type ring[T any] struct {
	buf  []T
	head int // index of the oldest element
	n    int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

// push appends v, returning the evicted element when the buffer was full.
func (r *ring[T]) push(v T) (evicted T, wasFull bool) {
	if r.n < len(r.buf) {
		r.buf[(r.head+r.n)%len(r.buf)] = v
		r.n++
		return evicted, false
	}
	evicted = r.buf[r.head]
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	return evicted, true
}

func (r *ring[T]) len() int { return r.n }

func (r *ring[T]) cap() int { return len(r.buf) }

// at returns the i-th element, oldest first.
func (r *ring[T]) at(i int) T {
	return r.buf[(r.head+i)%len(r.buf)]
}

// last returns the newest n elements, oldest first. Returns nil when fewer
// than n are buffered.
func (r *ring[T]) last(n int) []T {
	if n > r.n {
		return nil
	}
	out := make([]T, 0, n)
	for i := r.n - n; i < r.n; i++ {
		out = append(out, r.at(i))
	}
	return out
}
