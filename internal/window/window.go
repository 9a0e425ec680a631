// Package window keeps a bounded set of chapters resident, sliding the set as
// the reader moves and evicting what falls outside it.
package window

// Compute returns the contiguous run of chapter indices of size
// min(size, total), centered as closely as possible on center and clamped at
// document edges. A book with fewer than size chapters yields the full range.
func Compute(center, size, total int) []int {
	if total <= 0 || size <= 0 {
		return nil
	}
	if size > total {
		size = total
	}
	start := center - size/2
	if start < 0 {
		start = 0
	}
	if start > total-size {
		start = total - size
	}
	w := make([]int, size)
	for i := range w {
		w[i] = start + i
	}
	return w
}

// centerOf returns the designated center chapter of a window: its middle
// element, which the reader must reach before sliding unlocks.
func centerOf(w []int) int {
	if len(w) == 0 {
		return 0
	}
	return w[len(w)/2]
}
