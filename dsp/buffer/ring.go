// Package buffer provides the power-of-two ring buffer shared by the pitch
// detector and the WSOLA shifter. Indices wrap with a bitmask, so any int
// (including negative grain offsets) addresses a valid slot.
package buffer

import "fmt"

// Ring is circular float64 storage whose capacity is always a power of two.
type Ring struct {
	data []float64
	mask int
	pos  int
}

// NewRing returns a ring with capacity rounded up to the next power of two.
func NewRing(minCapacity int) (*Ring, error) {
	if minCapacity <= 0 {
		return nil, fmt.Errorf("ring capacity must be > 0: %d", minCapacity)
	}

	capacity := 1
	for capacity < minCapacity {
		capacity <<= 1
	}

	return &Ring{
		data: make([]float64, capacity),
		mask: capacity - 1,
	}, nil
}

// Len returns the ring capacity.
func (r *Ring) Len() int { return len(r.data) }

// WritePos returns the absolute write position (monotonic index before wrap).
func (r *Ring) WritePos() int { return r.pos }

// Write appends one sample and advances the write position.
func (r *Ring) Write(sample float64) {
	r.data[r.pos&r.mask] = sample
	r.pos++
}

// At reads the sample at absolute index i, wrapping via bitmask.
func (r *Ring) At(i int) float64 {
	return r.data[i&r.mask]
}

// SetAt stores sample at absolute index i.
func (r *Ring) SetAt(i int, sample float64) {
	r.data[i&r.mask] = sample
}

// AddAt accumulates sample into absolute index i (overlap-add).
func (r *Ring) AddAt(i int, sample float64) {
	r.data[i&r.mask] += sample
}

// ReadBlock copies len(dst) consecutive samples starting at absolute index
// start into dst.
func (r *Ring) ReadBlock(dst []float64, start int) {
	for i := range dst {
		dst[i] = r.data[(start+i)&r.mask]
	}
}

// Reset zeroes the storage and rewinds the write position.
func (r *Ring) Reset() {
	for i := range r.data {
		r.data[i] = 0
	}
	r.pos = 0
}
