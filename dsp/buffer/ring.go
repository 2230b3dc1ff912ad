package buffer

// Ring is a fixed-capacity circular queue of float64 values. Pushing onto a
// full ring evicts the oldest element. The backing array is allocated once;
// Push never allocates.
type Ring struct {
	data  []float64
	start int
	count int
}

// NewRing returns an empty ring with the given capacity.
// Capacity values below 1 are clamped to 1.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}

	return &Ring{data: make([]float64, capacity)}
}

// Push appends v, evicting the oldest element if the ring is full.
func (r *Ring) Push(v float64) {
	end := (r.start + r.count) % len(r.data)
	r.data[end] = v

	if r.count < len(r.data) {
		r.count++
		return
	}

	r.start = (r.start + 1) % len(r.data)
}

// Len returns the number of elements currently held.
func (r *Ring) Len() int {
	return r.count
}

// Cap returns the fixed capacity.
func (r *Ring) Cap() int {
	return len(r.data)
}

// At returns the i-th element, oldest first. ok is false when i is out of
// range.
func (r *Ring) At(i int) (v float64, ok bool) {
	if i < 0 || i >= r.count {
		return 0, false
	}

	return r.data[(r.start+i)%len(r.data)], true
}

// Do calls fn for each element, oldest first.
func (r *Ring) Do(fn func(v float64)) {
	for i := 0; i < r.count; i++ {
		fn(r.data[(r.start+i)%len(r.data)])
	}
}

// CountWhere returns the number of held elements for which pred is true.
func (r *Ring) CountWhere(pred func(v float64) bool) int {
	n := 0

	for i := 0; i < r.count; i++ {
		if pred(r.data[(r.start+i)%len(r.data)]) {
			n++
		}
	}

	return n
}

// FractionWhere returns CountWhere(pred) / Len(), 0 for an empty ring.
func (r *Ring) FractionWhere(pred func(v float64) bool) float64 {
	if r.count == 0 {
		return 0
	}

	return float64(r.CountWhere(pred)) / float64(r.count)
}

// Reset empties the ring without releasing the backing array.
func (r *Ring) Reset() {
	r.start = 0
	r.count = 0
}
