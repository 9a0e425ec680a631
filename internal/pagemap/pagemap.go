// Package pagemap maintains the mapping between the document-wide page
// counter and (chapter, in-chapter page) coordinates.
//
// The mapping is a prefix-sum table over per-chapter page counts. Lookups are
// O(log chapters); a page-count change rebuilds only the suffix of the table
// at or after the changed chapter, so earlier global indices never move.
package pagemap

import (
	"sort"

	"github.com/dgallion1/bookpager/internal/book"
)

// Map owns the derived global-index data. It is not safe for concurrent use;
// the navigation layer serializes access.
type Map struct {
	counts []int
	starts []int // starts[i] = global index of chapter i's first page
	total  int
}

// New returns a mapper built from the given ordered page counts.
func New(counts []int) *Map {
	m := &Map{}
	m.Build(counts)
	return m
}

// Build rebuilds the full table in O(chapters). Called at document open and
// whenever the whole count set is replaced.
func (m *Map) Build(counts []int) {
	m.counts = make([]int, len(counts))
	copy(m.counts, counts)
	m.starts = make([]int, len(counts))
	m.rebuildFrom(0)
}

// rebuildFrom recomputes starts for chapters at or after c.
func (m *Map) rebuildFrom(c int) {
	total := 0
	if c > 0 {
		total = m.starts[c-1] + m.counts[c-1]
	}
	for i := c; i < len(m.counts); i++ {
		m.starts[i] = total
		total += m.counts[i]
	}
	if len(m.counts) > 0 {
		m.total = m.starts[len(m.counts)-1] + m.counts[len(m.counts)-1]
	} else {
		m.total = 0
	}
}

// TotalChapters returns the number of chapters in the table.
func (m *Map) TotalChapters() int { return len(m.counts) }

// TotalPages returns the current global page count.
func (m *Map) TotalPages() int { return m.total }

// PageCount returns the recorded page count for a chapter.
func (m *Map) PageCount(chapter int) (int, error) {
	if chapter < 0 || chapter >= len(m.counts) {
		return 0, book.ErrInvalidChapter
	}
	return m.counts[chapter], nil
}

// Locate resolves a global page index to its (chapter, page) coordinate.
func (m *Map) Locate(global int) (book.PageLocation, error) {
	if global < 0 || global >= m.total {
		return book.PageLocation{}, book.ErrOutOfRange
	}
	// First chapter whose start is beyond the index, minus one.
	c := sort.Search(len(m.starts), func(i int) bool { return m.starts[i] > global }) - 1
	return book.PageLocation{
		GlobalPage: global,
		Chapter:    c,
		Page:       global - m.starts[c],
	}, nil
}

// GlobalIndex resolves a (chapter, page) coordinate to its global index.
func (m *Map) GlobalIndex(chapter, page int) (int, error) {
	if chapter < 0 || chapter >= len(m.counts) {
		return 0, book.ErrInvalidChapter
	}
	if page < 0 || page >= m.counts[chapter] {
		return 0, book.ErrInvalidPage
	}
	return m.starts[chapter] + page, nil
}

// SetPageCount records a measured page count for one chapter. Setting the
// already-recorded value is a no-op. Otherwise only the table suffix from
// chapter onward is recomputed. Returns whether the mapping changed.
func (m *Map) SetPageCount(chapter, count int) (bool, error) {
	if chapter < 0 || chapter >= len(m.counts) {
		return false, book.ErrInvalidChapter
	}
	if count < 0 {
		return false, book.ErrInvalidPage
	}
	if m.counts[chapter] == count {
		return false, nil
	}
	m.counts[chapter] = count
	m.rebuildFrom(chapter)
	return true, nil
}
