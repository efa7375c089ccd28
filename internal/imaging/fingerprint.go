package imaging

import "math/bits"

// Fingerprint is a 64-bit difference hash of a normalized tensor.
// Identical tensors always share a fingerprint; different tensors may
// collide, so a match must be confirmed with Tensor.Equal.
type Fingerprint uint64

// Fingerprint computes the difference hash over a 9x8 grid of cell means.
// Bit i is set when a cell is brighter than its right-hand neighbour.
func (t Tensor) Fingerprint() Fingerprint {
	const cols, rows = 9, 8
	var grid [rows][cols]float64
	for gy := range rows {
		y0, y1 := gy*t.Height/rows, (gy+1)*t.Height/rows
		for gx := range cols {
			x0, x1 := gx*t.Width/cols, (gx+1)*t.Width/cols
			var sum float64
			n := 0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					sum += float64(t.Data[y*t.Width+x])
					n++
				}
			}
			if n > 0 {
				grid[gy][gx] = sum / float64(n)
			}
		}
	}

	var hash uint64
	bit := 63
	for y := range rows {
		for x := range cols - 1 {
			if grid[y][x] > grid[y][x+1] {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return Fingerprint(hash)
}

// HammingDistance counts the differing bits of two fingerprints.
func HammingDistance(a, b Fingerprint) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// DuplicateSet remembers tensors and reports exact repeats.
type DuplicateSet struct {
	buckets map[Fingerprint][]Tensor
}

// NewDuplicateSet creates an empty set.
func NewDuplicateSet() *DuplicateSet {
	return &DuplicateSet{buckets: make(map[Fingerprint][]Tensor)}
}

// Add stores t and returns false if an identical tensor was already present.
func (s *DuplicateSet) Add(t Tensor) bool {
	fp := t.Fingerprint()
	for _, seen := range s.buckets[fp] {
		if seen.Equal(t) {
			return false
		}
	}
	s.buckets[fp] = append(s.buckets[fp], t)
	return true
}
