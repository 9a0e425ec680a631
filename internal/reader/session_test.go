package reader

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/bookpager/internal/book"
	"github.com/dgallion1/bookpager/internal/layout"
	"github.com/dgallion1/bookpager/internal/source"
	"github.com/dgallion1/bookpager/internal/window"
)

// testBook builds a book with chapters of ten short lines each, so every
// chapter measures to exactly two pages under the test viewport.
func testBook(chapters int) *source.MemorySource {
	texts := make([]string, chapters)
	for c := range texts {
		var lines []string
		for l := 0; l < 10; l++ {
			lines = append(lines, fmt.Sprintf("c%d l%d", c, l))
		}
		texts[c] = strings.Join(lines, "\n")
	}
	return source.NewMemoryTexts("test book", texts)
}

func testOptions() Options {
	opt := DefaultOptions()
	opt.Viewport = layout.Viewport{Width: 40, Height: 5}
	opt.FallbackPageCount = 4
	opt.RetryWait = time.Millisecond
	return opt
}

// flakySource wraps a memory source with per-chapter failure injection.
// A negative count fails forever until healed.
type flakySource struct {
	*source.MemorySource
	mu   sync.Mutex
	fail map[int]int
}

func (f *flakySource) LoadChapter(ctx context.Context, i int) (*book.ChapterContent, error) {
	f.mu.Lock()
	n := f.fail[i]
	if n != 0 {
		if n > 0 {
			f.fail[i]--
		}
		f.mu.Unlock()
		return nil, &book.LoadError{Chapter: i, Err: errors.New("source unavailable")}
	}
	f.mu.Unlock()
	return f.MemorySource.LoadChapter(ctx, i)
}

func (f *flakySource) setFail(chapter, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[chapter] = n
}

func TestSession_OperationsFailBeforeInitialize(t *testing.T) {
	s := New(testBook(10), testOptions(), nil)
	ctx := context.Background()
	if _, err := s.NavigateToGlobalPage(ctx, 0); !errors.Is(err, book.ErrNotInitialized) {
		t.Errorf("NavigateToGlobalPage: expected ErrNotInitialized, got %v", err)
	}
	if _, err := s.NavigateToChapter(ctx, 0, 0); !errors.Is(err, book.ErrNotInitialized) {
		t.Errorf("NavigateToChapter: expected ErrNotInitialized, got %v", err)
	}
	if err := s.OnActiveChapterEntered(ctx, 0); !errors.Is(err, book.ErrNotInitialized) {
		t.Errorf("OnActiveChapterEntered: expected ErrNotInitialized, got %v", err)
	}
	if _, err := s.Repaginate(ctx, layout.Viewport{Width: 10, Height: 10}); !errors.Is(err, book.ErrNotInitialized) {
		t.Errorf("Repaginate: expected ErrNotInitialized, got %v", err)
	}
	if _, err := s.PageContent(0); !errors.Is(err, book.ErrNotInitialized) {
		t.Errorf("PageContent: expected ErrNotInitialized, got %v", err)
	}
}

func TestSession_InitializeLoadsCenteredWindow(t *testing.T) {
	s := New(testBook(10), testOptions(), nil)
	loc, err := s.Initialize(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Chapter != 2 || loc.Page != 0 {
		t.Errorf("expected start at chapter 2 page 0, got %+v", loc)
	}
	info := s.WindowInfo()
	if !reflect.DeepEqual(info.Chapters, []int{0, 1, 2, 3, 4}) {
		t.Errorf("window = %v, want [0..4]", info.Chapters)
	}
	if !reflect.DeepEqual(info.Loaded, info.Chapters) {
		t.Errorf("loaded = %v, want the full window", info.Loaded)
	}
	if s.Phase() != window.PhaseStartup {
		t.Errorf("phase = %v, want startup", s.Phase())
	}
	// Resident chapters are measured (2 pages), the rest keep the fallback.
	if info.TotalPages != 5*2+5*4 {
		t.Errorf("total pages = %d, want %d", info.TotalPages, 5*2+5*4)
	}
}

func TestSession_NavigationRoundTrip(t *testing.T) {
	// Five chapters fit one window, so everything is measured at open and
	// the mapping stays stable across the sweep.
	s := New(testBook(5), testOptions(), nil)
	ctx := context.Background()
	if _, err := s.Initialize(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	total := s.WindowInfo().TotalPages
	if total != 10 {
		t.Fatalf("total pages = %d, want 10", total)
	}
	for g := 0; g < total; g++ {
		loc, err := s.NavigateToGlobalPage(ctx, g)
		if err != nil {
			t.Fatalf("NavigateToGlobalPage(%d): unexpected error: %v", g, err)
		}
		if loc.GlobalPage != g {
			t.Errorf("navigate to %d resolved to %d (%+v)", g, loc.GlobalPage, loc)
		}
		pc, err := s.PageContent(g)
		if err != nil {
			t.Fatalf("PageContent(%d): unexpected error: %v", g, err)
		}
		wantPrefix := fmt.Sprintf("c%d ", loc.Chapter)
		if !strings.HasPrefix(pc.Lines[0], wantPrefix) {
			t.Errorf("page %d: first line %q not from chapter %d", g, pc.Lines[0], loc.Chapter)
		}
	}
}

func TestSession_NavigateOutOfRange(t *testing.T) {
	s := New(testBook(5), testOptions(), nil)
	ctx := context.Background()
	if _, err := s.Initialize(ctx, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, g := range []int{-1, s.WindowInfo().TotalPages, 1 << 20} {
		if _, err := s.NavigateToGlobalPage(ctx, g); !errors.Is(err, book.ErrOutOfRange) {
			t.Errorf("NavigateToGlobalPage(%d): expected ErrOutOfRange, got %v", g, err)
		}
	}
	if _, err := s.NavigateToChapter(ctx, 7, 0); !errors.Is(err, book.ErrInvalidChapter) {
		t.Errorf("expected ErrInvalidChapter, got %v", err)
	}
	if _, err := s.NavigateToChapter(ctx, 0, 99); !errors.Is(err, book.ErrInvalidPage) {
		t.Errorf("expected ErrInvalidPage, got %v", err)
	}
}

func TestSession_ActiveChapterDrivesPhaseAndShift(t *testing.T) {
	s := New(testBook(10), testOptions(), nil)
	ctx := context.Background()
	if _, err := s.Initialize(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.OnActiveChapterEntered(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Phase() != window.PhaseSteady {
		t.Fatal("expected STEADY after entering the designated center")
	}

	for _, c := range []int{3, 4} {
		if err := s.OnActiveChapterEntered(ctx, c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := s.WindowInfo().Chapters; !reflect.DeepEqual(got, []int{1, 2, 3, 4, 5}) {
		t.Errorf("window = %v, want [1..5] after reaching the leading edge", got)
	}
}

func TestSession_JumpPastCenterEntersSteady(t *testing.T) {
	s := New(testBook(10), testOptions(), nil)
	ctx := context.Background()
	if _, err := s.Initialize(ctx, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Phase() != window.PhaseStartup {
		t.Fatal("expected STARTUP after initialize")
	}

	// Jump straight to the last page: lands past the center chapter, so the
	// phase moves to STEADY without the reader paging through the middle.
	last := s.WindowInfo().TotalPages - 1
	loc, err := s.NavigateToGlobalPage(ctx, last)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Chapter != 9 {
		t.Errorf("expected to land in chapter 9, got %+v", loc)
	}
	if got := s.WindowInfo().Chapters; !reflect.DeepEqual(got, []int{5, 6, 7, 8, 9}) {
		t.Errorf("window = %v, want clamped [5..9]", got)
	}
	if s.Phase() != window.PhaseSteady {
		t.Error("expected a jump past the center to enter STEADY")
	}
	// The requested page exceeded the chapter's measured count and clamps to
	// the final page rather than running past the document.
	if loc.GlobalPage != s.WindowInfo().TotalPages-1 {
		t.Errorf("expected the final page after clamping, got %+v", loc)
	}
}

func TestSession_JumpBeforeCenterStaysStartup(t *testing.T) {
	s := New(testBook(12), testOptions(), nil)
	ctx := context.Background()
	if _, err := s.Initialize(ctx, 5); err != nil { // window [3..7], center 5
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.NavigateToChapter(ctx, 3, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Phase() != window.PhaseStartup {
		t.Error("a jump landing before the center must not unlock sliding")
	}
}

func TestSession_MarkEvictedGuardsActiveChapter(t *testing.T) {
	s := New(testBook(10), testOptions(), nil)
	ctx := context.Background()
	loc, err := s.Initialize(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.MarkChapterEvicted(2)
	if pc, err := s.PageContent(loc.GlobalPage); err != nil || len(pc.Lines) == 0 {
		t.Fatalf("active chapter content lost after eviction notice: %v", err)
	}

	s.MarkChapterEvicted(0)
	if _, err := s.PageContent(0); !errors.Is(err, book.ErrNotResident) {
		t.Fatalf("expected ErrNotResident for evicted chapter, got %v", err)
	}
	// Navigating back restores the evicted member without re-initializing.
	if _, err := s.NavigateToGlobalPage(ctx, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pc, err := s.PageContent(0); err != nil || !strings.HasPrefix(pc.Lines[0], "c0 ") {
		t.Fatalf("expected chapter 0 content after re-navigation, got %v", err)
	}
}

func TestSession_UnavailableChapterSurfacesMarker(t *testing.T) {
	f := &flakySource{MemorySource: testBook(10), fail: map[int]int{3: -1}}
	s := New(f, testOptions(), nil)
	ctx := context.Background()

	_, err := s.Initialize(ctx, 2)
	var le *book.LoadError
	if !errors.As(err, &le) || le.Chapter != 3 {
		t.Fatalf("expected LoadError for chapter 3, got %v", err)
	}
	info := s.WindowInfo()
	if !reflect.DeepEqual(info.Unavailable, []int{3}) {
		t.Fatalf("unavailable = %v, want [3]", info.Unavailable)
	}

	// Chapter 3 kept its fallback count; its first page is global 6.
	pc, err := s.PageContent(6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pc.Unavailable {
		t.Fatal("expected a discrete unavailable marker, not content")
	}
	if len(pc.Lines) != 0 {
		t.Errorf("unavailable page carries lines: %q", pc.Lines)
	}

	// Once the source recovers, navigation retries the slot without
	// re-initialization.
	f.setFail(3, 0)
	loc, err := s.NavigateToChapter(ctx, 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pc, err = s.PageContent(loc.GlobalPage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pc.Unavailable || !strings.HasPrefix(pc.Lines[0], "c3 ") {
		t.Errorf("expected chapter 3 content after recovery, got %+v", pc)
	}
	if len(s.WindowInfo().Unavailable) != 0 {
		t.Errorf("unavailable = %v, want empty after recovery", s.WindowInfo().Unavailable)
	}
}

func TestSession_RepaginatePreservesPositionByOffset(t *testing.T) {
	s := New(testBook(5), testOptions(), nil)
	ctx := context.Background()
	if _, err := s.Initialize(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loc, err := s.NavigateToChapter(ctx, 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.CharOffset == 0 {
		t.Fatal("expected a non-zero offset on page 1")
	}

	// Halve the page height: counts double, the reader stays on the page
	// holding the same character offset.
	newLoc, err := s.Repaginate(ctx, layout.Viewport{Width: 40, Height: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newLoc.Chapter != 2 {
		t.Fatalf("repagination moved the reader to chapter %d", newLoc.Chapter)
	}
	pc, err := s.PageContent(newLoc.GlobalPage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, line := range pc.Lines {
		if line == "c2 l5" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the page at the old offset to contain %q, got %q", "c2 l5", pc.Lines)
	}

	// Chapter 0 still starts at global 0; chapter 1 starts after chapter 0's
	// new count. Indices before a changed chapter never move.
	info := s.WindowInfo()
	if g, _ := s.pm.GlobalIndex(0, 0); g != 0 {
		t.Errorf("chapter 0 start moved to %d", g)
	}
	count0, _ := s.pm.PageCount(0)
	if g, _ := s.pm.GlobalIndex(1, 0); g != count0 {
		t.Errorf("chapter 1 start = %d, want %d", g, count0)
	}
	if info.TotalPages != 5*5 {
		t.Errorf("total pages = %d, want 25 after reflow to height 2", info.TotalPages)
	}
}

func TestSession_RepaginateSameViewportIsStable(t *testing.T) {
	s := New(testBook(5), testOptions(), nil)
	ctx := context.Background()
	if _, err := s.Initialize(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := s.WindowInfo().TotalPages
	loc, err := s.Repaginate(ctx, testOptions().Viewport)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.WindowInfo().TotalPages != before {
		t.Errorf("total pages changed from %d to %d under an identical viewport",
			before, s.WindowInfo().TotalPages)
	}
	if loc != s.Current() {
		t.Errorf("Current() = %+v, want %+v", s.Current(), loc)
	}
}

func TestSession_WatchChannelsPublishLatestState(t *testing.T) {
	s := New(testBook(10), testOptions(), nil)
	winCh, cancelWin := s.WatchWindow()
	defer cancelWin()
	phaseCh, cancelPhase := s.WatchPhase()
	defer cancelPhase()

	ctx := context.Background()
	if _, err := s.Initialize(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.OnActiveChapterEntered(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case info := <-winCh:
		if info.ActiveChapter != 2 {
			t.Errorf("published active chapter = %d, want 2", info.ActiveChapter)
		}
	default:
		t.Fatal("expected a window snapshot to be published")
	}
	select {
	case p := <-phaseCh:
		if p != window.PhaseSteady {
			t.Errorf("published phase = %v, want steady (latest value wins)", p)
		}
	default:
		t.Fatal("expected a phase value to be published")
	}
}

func TestSession_BookmarkRoundTrip(t *testing.T) {
	ctx := context.Background()
	s1 := New(testBook(5), testOptions(), nil)
	if _, err := s1.Initialize(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s1.NavigateToChapter(ctx, 3, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bm := s1.Bookmark("shelf/test-book")
	if bm.Chapter != 3 || bm.Page != 1 {
		t.Fatalf("bookmark = %+v, want chapter 3 page 1", bm)
	}

	s2 := New(testBook(5), testOptions(), nil)
	loc, err := s2.InitializeFromBookmark(ctx, bm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Chapter != 3 || loc.Page != 1 {
		t.Errorf("restored location = %+v, want chapter 3 page 1", loc)
	}
}
