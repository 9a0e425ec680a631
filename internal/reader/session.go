// Package reader is the navigation facade over the chapter source, the
// window buffer, and the global page mapper. The UI shell talks only to a
// Session; it never mutates engine state directly and observes changes
// through the published snapshots and watch channels.
package reader

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgallion1/bookpager/internal/book"
	"github.com/dgallion1/bookpager/internal/layout"
	"github.com/dgallion1/bookpager/internal/notify"
	"github.com/dgallion1/bookpager/internal/pagemap"
	"github.com/dgallion1/bookpager/internal/window"
)

// Source is the part of a chapter source the session consumes.
type Source interface {
	Title() string
	ChapterCount() int
	LoadChapter(ctx context.Context, index int) (*book.ChapterContent, error)
}

// Options controls session behavior.
type Options struct {
	WindowSize        int             // Resident window size W.
	ShiftMargin       int             // Edge distance that triggers a shift.
	FallbackPageCount int             // Page-count estimate for unmeasured chapters.
	Viewport          layout.Viewport // Initial viewport for pagination.
	RetryWait         time.Duration   // Wait before the single load retry.
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		WindowSize:        5,
		ShiftMargin:       0,
		FallbackPageCount: 20,
		Viewport:          layout.Viewport{Width: 80, Height: 24},
		RetryWait:         250 * time.Millisecond,
	}
}

// Session is one open document. All navigation mutations are serialized; a
// single mutation is in flight at any time. WindowInfo and Phase reads never
// take the mutation lock.
type Session struct {
	src Source
	log *slog.Logger
	opt Options

	buf *window.Buffer

	mu    sync.Mutex
	init  bool
	vp    layout.Viewport
	pm    *pagemap.Map
	pages map[int][]layout.Page // pagination cache, resident chapters only
	cur   book.PageLocation

	info      atomic.Pointer[book.WindowInfo]
	winSrc    *notify.Source[book.WindowInfo]
	phaseSrc  *notify.Source[window.Phase]
	lastPhase window.Phase
	phaseSeen bool
}

// New creates a session over a chapter source. Call Initialize before any
// navigation operation.
func New(src Source, opt Options, log *slog.Logger) *Session {
	if opt.WindowSize <= 0 {
		opt.WindowSize = 5
	}
	if opt.FallbackPageCount <= 0 {
		opt.FallbackPageCount = 20
	}
	if opt.Viewport.Width <= 0 || opt.Viewport.Height <= 0 {
		opt.Viewport = layout.Viewport{Width: 80, Height: 24}
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Session{
		src:      src,
		log:      log,
		opt:      opt,
		vp:       opt.Viewport,
		winSrc:   notify.NewSource[book.WindowInfo](),
		phaseSrc: notify.NewSource[window.Phase](),
	}
	s.buf = window.NewBuffer(src, src.ChapterCount(), window.Config{
		Size:      opt.WindowSize,
		Margin:    opt.ShiftMargin,
		RetryWait: opt.RetryWait,
	}, log)
	s.info.Store(&book.WindowInfo{TotalChapters: src.ChapterCount()})
	return s
}

// Title returns the book title.
func (s *Session) Title() string { return s.src.Title() }

// Initialize opens the document at a starting chapter: phase returns to
// STARTUP, the initial window is computed and loaded, and the global mapping
// is built from fallback page counts that later measurement corrects.
//
// A *book.LoadError means some window slot is unavailable; the session is
// still initialized and a later navigation will retry the slot.
func (s *Session) Initialize(ctx context.Context, startChapter int) (book.PageLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.src.ChapterCount()
	if startChapter < 0 || startChapter >= total {
		return book.PageLocation{}, book.ErrInvalidChapter
	}

	counts := make([]int, total)
	for i := range counts {
		counts[i] = s.opt.FallbackPageCount
	}
	s.pm = pagemap.New(counts)
	s.pages = make(map[int][]layout.Page)
	s.init = false

	err := s.buf.Reset(ctx, startChapter)
	if ctx.Err() != nil {
		return book.PageLocation{}, err
	}
	s.init = true
	s.measureLocked()
	s.cur = s.locationLocked(startChapter, 0)
	s.publishLocked()
	s.log.Info("session initialized",
		"title", s.src.Title(), "chapters", total, "start", startChapter)
	return s.cur, err
}

// InitializeFromBookmark opens the document at a persisted position. The
// character offset wins over the recorded page number, since the page was
// measured under a possibly different layout.
func (s *Session) InitializeFromBookmark(ctx context.Context, bm book.Bookmark) (book.PageLocation, error) {
	loc, err := s.Initialize(ctx, bm.Chapter)
	if err != nil {
		return loc, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	page := bm.Page
	if pgs, ok := s.pages[bm.Chapter]; ok {
		page = layout.PageForOffset(pgs, bm.CharOffset)
	}
	s.cur = s.locationLocked(bm.Chapter, s.clampPageLocked(bm.Chapter, page))
	s.publishLocked()
	return s.cur, nil
}

// NavigateToGlobalPage moves the reader to a global page index. If the
// owning chapter is outside the current window, a new window is recomputed
// and loaded around it; landing at or past the startup center chapter moves
// the phase to STEADY.
func (s *Session) NavigateToGlobalPage(ctx context.Context, global int) (book.PageLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.init {
		return book.PageLocation{}, book.ErrNotInitialized
	}
	loc, err := s.pm.Locate(global)
	if err != nil {
		return book.PageLocation{}, err
	}
	return s.navigateLocked(ctx, loc.Chapter, loc.Page)
}

// NavigateToChapter moves the reader to an in-chapter page coordinate.
func (s *Session) NavigateToChapter(ctx context.Context, chapter, page int) (book.PageLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.init {
		return book.PageLocation{}, book.ErrNotInitialized
	}
	if chapter < 0 || chapter >= s.pm.TotalChapters() {
		return book.PageLocation{}, book.ErrInvalidChapter
	}
	count, _ := s.pm.PageCount(chapter)
	if page < 0 || page >= count {
		return book.PageLocation{}, book.ErrInvalidPage
	}
	return s.navigateLocked(ctx, chapter, page)
}

// navigateLocked performs the shared navigation flow: make the chapter
// resident, record it as active, and resolve the final location under
// whatever page counts measurement settled on.
func (s *Session) navigateLocked(ctx context.Context, chapter, page int) (book.PageLocation, error) {
	snap := s.buf.Snapshot()
	var loadErr error
	if !containsInt(snap.Window, chapter) {
		loadErr = s.buf.Load(ctx, chapter)
		if ctx.Err() != nil {
			return book.PageLocation{}, loadErr
		}
		s.measureLocked()
	} else if _, ok := s.buf.Content(chapter); !ok {
		loadErr = s.buf.Restore(ctx, chapter)
		if ctx.Err() != nil {
			return book.PageLocation{}, loadErr
		}
		s.measureLocked()
	}

	if err := s.buf.EnterChapter(ctx, chapter); err != nil && loadErr == nil {
		loadErr = err
	}
	s.measureLocked()

	s.cur = s.locationLocked(chapter, s.clampPageLocked(chapter, page))
	s.publishLocked()
	return s.cur, loadErr
}

// OnActiveChapterEntered records that the rendering boundary crossed into a
// chapter. This is the sole trigger for phase-transition evaluation and for
// forward/backward shift evaluation.
func (s *Session) OnActiveChapterEntered(ctx context.Context, chapter int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.init {
		return book.ErrNotInitialized
	}
	if chapter < 0 || chapter >= s.pm.TotalChapters() {
		return book.ErrInvalidChapter
	}
	prev := s.cur.Chapter
	var err error
	if !containsInt(s.buf.Snapshot().Window, chapter) {
		err = s.buf.Load(ctx, chapter)
		if ctx.Err() != nil {
			return err
		}
		s.measureLocked()
	}
	if enterErr := s.buf.EnterChapter(ctx, chapter); enterErr != nil && err == nil {
		err = enterErr
	}
	s.measureLocked()
	if chapter != prev {
		s.cur = s.locationLocked(chapter, 0)
	}
	s.publishLocked()
	return err
}

// MarkChapterEvicted forwards an external memory-pressure eviction. The
// active chapter is never evicted.
func (s *Session) MarkChapterEvicted(chapter int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.init {
		return
	}
	if s.buf.MarkEvicted(chapter) {
		delete(s.pages, chapter)
		s.publishLocked()
	}
}

// Repaginate re-measures resident chapters under a new viewport and moves
// the reader to the page nearest the previous character offset. Page counts
// are invalidated by reflow; character offsets are not.
func (s *Session) Repaginate(ctx context.Context, vp layout.Viewport) (book.PageLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.init {
		return book.PageLocation{}, book.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return book.PageLocation{}, err
	}
	if vp.Width > 0 && vp.Height > 0 {
		s.vp = vp
	}
	prevChapter, prevOffset := s.cur.Chapter, s.cur.CharOffset
	s.pages = make(map[int][]layout.Page)
	s.measureLocked()

	page := 0
	if pgs, ok := s.pages[prevChapter]; ok {
		page = layout.PageForOffset(pgs, prevOffset)
	}
	s.cur = s.locationLocked(prevChapter, s.clampPageLocked(prevChapter, page))
	s.publishLocked()
	return s.cur, nil
}

// PageContent returns the rendered lines for one global page. A chapter
// whose load failed yields a discrete unavailable marker, never blank
// content; a chapter outside the window yields ErrNotResident.
func (s *Session) PageContent(global int) (book.PageContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.init {
		return book.PageContent{}, book.ErrNotInitialized
	}
	loc, err := s.pm.Locate(global)
	if err != nil {
		return book.PageContent{}, err
	}
	snap := s.buf.Snapshot()
	if containsInt(snap.Unavailable, loc.Chapter) {
		return book.PageContent{Location: loc, Unavailable: true}, nil
	}
	pgs, ok := s.pages[loc.Chapter]
	if !ok {
		return book.PageContent{}, book.ErrNotResident
	}
	if loc.Page >= len(pgs) {
		return book.PageContent{}, book.ErrInvalidPage
	}
	loc.CharOffset = pgs[loc.Page].StartOffset
	return book.PageContent{Location: loc, Lines: pgs[loc.Page].Lines}, nil
}

// WindowInfo returns the latest published buffer state without locking.
func (s *Session) WindowInfo() book.WindowInfo { return *s.info.Load() }

// Phase returns the current buffer phase without locking.
func (s *Session) Phase() window.Phase { return s.buf.Phase() }

// Current returns the reader's current location.
func (s *Session) Current() book.PageLocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Bookmark materializes the current position as a persistable record.
func (s *Session) Bookmark(bookID string) book.Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return book.Bookmark{
		BookID:     bookID,
		Chapter:    s.cur.Chapter,
		Page:       s.cur.Page,
		CharOffset: s.cur.CharOffset,
	}
}

// WatchWindow subscribes to window snapshots with latest-value semantics.
func (s *Session) WatchWindow() (<-chan book.WindowInfo, func()) {
	return s.winSrc.Subscribe()
}

// WatchPhase subscribes to phase changes with latest-value semantics.
func (s *Session) WatchPhase() (<-chan window.Phase, func()) {
	return s.phaseSrc.Subscribe()
}

// measureLocked paginates resident chapters that have no cached layout and
// feeds the measured counts into the mapper. Counts survive eviction; only
// the cached pagination is dropped for chapters that left the window.
func (s *Session) measureLocked() {
	snap := s.buf.Snapshot()
	loaded := make(map[int]bool, len(snap.Loaded))
	for _, c := range snap.Loaded {
		loaded[c] = true
		if _, ok := s.pages[c]; ok {
			continue
		}
		content := snap.Content[c]
		if content == nil {
			continue
		}
		pgs := layout.Paginate(content.Text, s.vp)
		s.pages[c] = pgs
		changed, err := s.pm.SetPageCount(c, len(pgs))
		if err != nil {
			s.log.Error("page count update rejected", "chapter", c, "error", err)
			continue
		}
		if changed {
			s.log.Debug("chapter measured", "chapter", c, "pages", len(pgs))
		}
	}
	for c := range s.pages {
		if !loaded[c] {
			delete(s.pages, c)
		}
	}
}

// clampPageLocked fits a requested page into the chapter's current count.
// Measurement between request and resolution may have shrunk the chapter.
func (s *Session) clampPageLocked(chapter, page int) int {
	count, err := s.pm.PageCount(chapter)
	if err != nil || count == 0 {
		return 0
	}
	if page >= count {
		return count - 1
	}
	if page < 0 {
		return 0
	}
	return page
}

// locationLocked materializes a PageLocation for a known-valid coordinate.
func (s *Session) locationLocked(chapter, page int) book.PageLocation {
	g, err := s.pm.GlobalIndex(chapter, page)
	if err != nil {
		g = 0
	}
	loc := book.PageLocation{GlobalPage: g, Chapter: chapter, Page: page}
	if pgs, ok := s.pages[chapter]; ok && page < len(pgs) {
		loc.CharOffset = pgs[page].StartOffset
	}
	return loc
}

// publishLocked refreshes the lock-free snapshot and the watch channels.
func (s *Session) publishLocked() {
	snap := s.buf.Snapshot()
	info := book.WindowInfo{
		ActiveChapter: snap.Active,
		Chapters:      snap.Window,
		Loaded:        snap.Loaded,
		Unavailable:   snap.Unavailable,
		TotalChapters: s.pm.TotalChapters(),
		TotalPages:    s.pm.TotalPages(),
	}
	s.info.Store(&info)
	s.winSrc.Publish(info)
	if !s.phaseSeen || snap.Phase != s.lastPhase {
		s.phaseSeen = true
		s.lastPhase = snap.Phase
		s.phaseSrc.Publish(snap.Phase)
	}
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
