package pagemap

import (
	"errors"
	"testing"

	"github.com/dgallion1/bookpager/internal/book"
)

func TestLocate_RoundTripsWithGlobalIndex(t *testing.T) {
	m := New([]int{3, 1, 7, 2, 5})
	for g := 0; g < m.TotalPages(); g++ {
		loc, err := m.Locate(g)
		if err != nil {
			t.Fatalf("Locate(%d): unexpected error: %v", g, err)
		}
		back, err := m.GlobalIndex(loc.Chapter, loc.Page)
		if err != nil {
			t.Fatalf("GlobalIndex(%d, %d): unexpected error: %v", loc.Chapter, loc.Page, err)
		}
		if back != g {
			t.Errorf("round trip for %d returned %d (chapter %d page %d)", g, back, loc.Chapter, loc.Page)
		}
	}
}

func TestLocate_Monotonic(t *testing.T) {
	m := New([]int{4, 2, 6, 1})
	prevChapter, prevPage := -1, -1
	for g := 0; g < m.TotalPages(); g++ {
		loc, err := m.Locate(g)
		if err != nil {
			t.Fatalf("Locate(%d): unexpected error: %v", g, err)
		}
		if loc.Chapter < prevChapter {
			t.Fatalf("chapter decreased at global %d: %d -> %d", g, prevChapter, loc.Chapter)
		}
		if loc.Chapter == prevChapter && loc.Page <= prevPage {
			t.Fatalf("page did not advance at global %d", g)
		}
		prevChapter, prevPage = loc.Chapter, loc.Page
	}
}

func TestLocate_OutOfRange(t *testing.T) {
	m := New([]int{2, 2})
	for _, g := range []int{-1, 4, 100} {
		if _, err := m.Locate(g); !errors.Is(err, book.ErrOutOfRange) {
			t.Errorf("Locate(%d): expected ErrOutOfRange, got %v", g, err)
		}
	}
}

func TestGlobalIndex_RejectsBadCoordinates(t *testing.T) {
	m := New([]int{2, 3})
	if _, err := m.GlobalIndex(-1, 0); !errors.Is(err, book.ErrInvalidChapter) {
		t.Errorf("expected ErrInvalidChapter for chapter -1, got %v", err)
	}
	if _, err := m.GlobalIndex(2, 0); !errors.Is(err, book.ErrInvalidChapter) {
		t.Errorf("expected ErrInvalidChapter for chapter 2, got %v", err)
	}
	if _, err := m.GlobalIndex(1, 3); !errors.Is(err, book.ErrInvalidPage) {
		t.Errorf("expected ErrInvalidPage for page past count, got %v", err)
	}
	if _, err := m.GlobalIndex(1, -1); !errors.Is(err, book.ErrInvalidPage) {
		t.Errorf("expected ErrInvalidPage for negative page, got %v", err)
	}
}

func TestSetPageCount_SameValueIsNoOp(t *testing.T) {
	m := New([]int{3, 5, 4})
	before := make([]int, m.TotalPages())
	for g := range before {
		loc, _ := m.Locate(g)
		before[g] = loc.Chapter*1000 + loc.Page
	}

	changed, err := m.SetPageCount(1, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Error("expected no change when setting the recorded value")
	}
	for g := range before {
		loc, _ := m.Locate(g)
		if loc.Chapter*1000+loc.Page != before[g] {
			t.Fatalf("mapping changed at global %d after idempotent update", g)
		}
	}
}

func TestSetPageCount_OnlySuffixShifts(t *testing.T) {
	m := New([]int{3, 10, 4, 6})

	// Global indices for every page of chapters 0 and 1 before the change.
	g10, _ := m.GlobalIndex(1, 0)

	changed, err := m.SetPageCount(1, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatal("expected change when shrinking chapter 1 from 10 to 7 pages")
	}

	// Chapters before the changed one keep their indices.
	for p := 0; p < 3; p++ {
		g, err := m.GlobalIndex(0, p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g != p {
			t.Errorf("chapter 0 page %d moved to global %d", p, g)
		}
	}
	if g, _ := m.GlobalIndex(1, 0); g != g10 {
		t.Errorf("chapter 1 start moved from %d to %d", g10, g)
	}

	// Chapters after it shift by the delta.
	g20, _ := m.GlobalIndex(2, 0)
	if g20 != 3+7 {
		t.Errorf("expected chapter 2 to start at %d, got %d", 3+7, g20)
	}
	if m.TotalPages() != 3+7+4+6 {
		t.Errorf("expected total %d, got %d", 3+7+4+6, m.TotalPages())
	}
}

func TestSetPageCount_RejectsBadInput(t *testing.T) {
	m := New([]int{2})
	if _, err := m.SetPageCount(5, 1); !errors.Is(err, book.ErrInvalidChapter) {
		t.Errorf("expected ErrInvalidChapter, got %v", err)
	}
	if _, err := m.SetPageCount(0, -1); !errors.Is(err, book.ErrInvalidPage) {
		t.Errorf("expected ErrInvalidPage for negative count, got %v", err)
	}
}

func TestBuild_EmptyDocument(t *testing.T) {
	m := New(nil)
	if m.TotalPages() != 0 || m.TotalChapters() != 0 {
		t.Errorf("expected empty mapping, got %d chapters %d pages", m.TotalChapters(), m.TotalPages())
	}
	if _, err := m.Locate(0); !errors.Is(err, book.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange on empty document, got %v", err)
	}
}
