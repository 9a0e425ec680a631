package window

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgallion1/bookpager/internal/book"
)

// Source supplies chapter content. Loads may be slow; callers should not
// assume bounded latency.
type Source interface {
	LoadChapter(ctx context.Context, index int) (*book.ChapterContent, error)
}

// Config controls buffer behavior.
type Config struct {
	Size      int           // Window size W.
	Margin    int           // Distance from a window edge that triggers a shift.
	RetryWait time.Duration // Wait before the single automatic load retry.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Size:      5,
		Margin:    0,
		RetryWait: 250 * time.Millisecond,
	}
}

// Snapshot is an immutable view of the buffer published after every
// mutation. Readers never take the mutation lock; they observe the latest
// committed state and tolerate eventual consistency with in-flight loads.
type Snapshot struct {
	Window      []int
	Loaded      []int
	Unavailable []int
	Active      int
	Phase       Phase
	Content     map[int]*book.ChapterContent
}

// Buffer owns the resident chapter set. All mutations are serialized under
// one mutex; the lock is held for the duration of a load so no second
// navigation can observe a partially updated window.
type Buffer struct {
	src   Source
	log   *slog.Logger
	cfg   Config
	total int

	mu          sync.Mutex
	window      []int
	resident    map[int]*book.ChapterContent
	unavailable map[int]bool
	active      int
	machine     *phaseMachine

	// desired is bumped per navigation intent; a load that finishes for an
	// older generation is discarded without touching committed state.
	desired atomic.Uint64

	snap atomic.Pointer[Snapshot]

	// OnChange, if set before first use, is invoked with each committed
	// snapshot. Called with the mutation lock held; keep it non-blocking.
	OnChange func(Snapshot)
}

// NewBuffer creates a buffer over a document with total chapters.
func NewBuffer(src Source, total int, cfg Config, log *slog.Logger) *Buffer {
	if cfg.Size <= 0 {
		cfg.Size = 5
	}
	if cfg.Margin < 0 {
		cfg.Margin = 0
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 250 * time.Millisecond
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Buffer{
		src:         src,
		log:         log,
		cfg:         cfg,
		total:       total,
		resident:    make(map[int]*book.ChapterContent),
		unavailable: make(map[int]bool),
		machine:     newPhaseMachine(0),
	}
	b.snap.Store(&Snapshot{Phase: PhaseStartup, Content: map[int]*book.ChapterContent{}})
	return b
}

// Total returns the document's chapter count.
func (b *Buffer) Total() int { return b.total }

// Snapshot returns the latest committed buffer state without locking.
func (b *Buffer) Snapshot() Snapshot { return *b.snap.Load() }

// Phase returns the current phase without locking.
func (b *Buffer) Phase() Phase { return b.snap.Load().Phase }

// Content returns the resident content for a chapter, if present.
func (b *Buffer) Content(chapter int) (*book.ChapterContent, bool) {
	c, ok := b.snap.Load().Content[chapter]
	return c, ok
}

// Reset recenters the buffer for a newly opened position. Phase returns to
// STARTUP with the new window's middle element as the designated center.
func (b *Buffer) Reset(ctx context.Context, center int) error {
	gen := b.desired.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	target := Compute(center, b.cfg.Size, b.total)
	b.machine = newPhaseMachine(centerOf(target))
	b.active = center
	return b.loadLocked(ctx, gen, target)
}

// Load recomputes the window centered on center and makes exactly that set
// resident, evicting everything else. Phase is left untouched.
func (b *Buffer) Load(ctx context.Context, center int) error {
	gen := b.desired.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loadLocked(ctx, gen, Compute(center, b.cfg.Size, b.total))
}

// loadLocked diffs the target window against the resident set, loads the
// missing members into a staging area, and commits atomically. A failed
// member is committed as an unavailable slot and the error surfaces to the
// caller; a canceled context rolls back to the prior state entirely.
func (b *Buffer) loadLocked(ctx context.Context, gen uint64, target []int) error {
	staged := make(map[int]*book.ChapterContent)
	var loadErr error
	for _, c := range target {
		if _, ok := b.resident[c]; ok {
			continue
		}
		content, err := b.loadWithRetry(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			if loadErr == nil {
				loadErr = err
			}
			staged[c] = nil
			continue
		}
		staged[c] = content
	}

	// A newer navigation superseded this one while it was loading; the work
	// completes harmlessly and the loaded content is discarded.
	if gen != b.desired.Load() {
		b.log.Debug("discarding superseded window load", "target", target)
		return nil
	}

	inTarget := make(map[int]bool, len(target))
	for _, c := range target {
		inTarget[c] = true
	}
	for c := range b.resident {
		if !inTarget[c] {
			delete(b.resident, c)
		}
	}
	for c := range b.unavailable {
		if !inTarget[c] {
			delete(b.unavailable, c)
		}
	}
	for c, content := range staged {
		if content == nil {
			b.unavailable[c] = true
			continue
		}
		b.resident[c] = content
		delete(b.unavailable, c)
	}
	b.window = target
	b.publishLocked()
	return loadErr
}

// loadWithRetry calls the source, retrying exactly once on failure.
func (b *Buffer) loadWithRetry(ctx context.Context, chapter int) (*book.ChapterContent, error) {
	content, err := b.src.LoadChapter(ctx, chapter)
	if err == nil {
		return content, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	b.log.Warn("chapter load failed, retrying once", "chapter", chapter, "error", err)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(b.cfg.RetryWait):
	}
	content, err = b.src.LoadChapter(ctx, chapter)
	if err != nil {
		var le *book.LoadError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, &book.LoadError{Chapter: chapter, Err: err}
	}
	return content, nil
}

// Restore reloads a window member whose content was evicted or whose earlier
// load failed. A no-op for chapters already resident.
func (b *Buffer) Restore(ctx context.Context, chapter int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !contains(b.window, chapter) {
		return book.ErrInvalidChapter
	}
	if _, ok := b.resident[chapter]; ok {
		return nil
	}
	content, err := b.loadWithRetry(ctx, chapter)
	if err != nil {
		b.unavailable[chapter] = true
		b.publishLocked()
		return err
	}
	b.resident[chapter] = content
	delete(b.unavailable, chapter)
	b.publishLocked()
	return nil
}

// EnterChapter records the reader's newly visible chapter. This is the sole
// trigger for phase evaluation and for edge-shift evaluation.
func (b *Buffer) EnterChapter(ctx context.Context, chapter int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.active
	b.active = chapter
	if b.machine.observe(chapter) {
		b.log.Info("buffer entering steady phase", "chapter", chapter)
	}
	defer b.publishLocked()
	if b.machine.current() != PhaseSteady || len(b.window) == 0 || chapter == prev {
		return nil
	}
	if chapter > prev && chapter >= b.window[len(b.window)-1]-b.cfg.Margin {
		return b.shiftLocked(ctx, 1)
	}
	if chapter < prev && chapter <= b.window[0]+b.cfg.Margin {
		return b.shiftLocked(ctx, -1)
	}
	return nil
}

// ShiftForward slides the window one chapter toward the document end.
// Valid only in STEADY phase; a silent no-op at the document boundary.
func (b *Buffer) ShiftForward(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.publishLocked()
	return b.shiftLocked(ctx, 1)
}

// ShiftBackward slides the window one chapter toward the document start.
func (b *Buffer) ShiftBackward(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.publishLocked()
	return b.shiftLocked(ctx, -1)
}

// shiftLocked drops the trailing-edge chapter and appends the pre-loaded
// leading-edge chapter, keeping window size constant.
func (b *Buffer) shiftLocked(ctx context.Context, dir int) error {
	if b.machine.current() != PhaseSteady || len(b.window) == 0 {
		return nil
	}
	var next, drop int
	if dir > 0 {
		next = b.window[len(b.window)-1] + 1
		drop = b.window[0]
		if next >= b.total {
			return nil
		}
	} else {
		next = b.window[0] - 1
		drop = b.window[len(b.window)-1]
		if next < 0 {
			return nil
		}
	}

	content, err := b.loadWithRetry(ctx, next)
	if ctx.Err() != nil {
		return err
	}

	delete(b.resident, drop)
	delete(b.unavailable, drop)
	if dir > 0 {
		b.window = append(append([]int(nil), b.window[1:]...), next)
	} else {
		b.window = append([]int{next}, b.window[:len(b.window)-1]...)
	}
	if err != nil {
		b.unavailable[next] = true
		return err
	}
	b.resident[next] = content
	delete(b.unavailable, next)
	return nil
}

// MarkEvicted handles an external eviction notice, e.g. a memory-pressure
// signal from the rendering layer. The active chapter is never evicted while
// it is displayed; that case is a no-op. Returns whether content was dropped.
func (b *Buffer) MarkEvicted(chapter int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if chapter == b.active {
		return false
	}
	if _, ok := b.resident[chapter]; !ok {
		return false
	}
	delete(b.resident, chapter)
	b.publishLocked()
	return true
}

// publishLocked commits the current state as an immutable snapshot.
func (b *Buffer) publishLocked() {
	s := Snapshot{
		Window:  append([]int(nil), b.window...),
		Active:  b.active,
		Phase:   b.machine.current(),
		Content: make(map[int]*book.ChapterContent, len(b.resident)),
	}
	for _, c := range b.window {
		if content, ok := b.resident[c]; ok {
			s.Loaded = append(s.Loaded, c)
			s.Content[c] = content
		}
		if b.unavailable[c] {
			s.Unavailable = append(s.Unavailable, c)
		}
	}
	b.snap.Store(&s)
	if b.OnChange != nil {
		b.OnChange(s)
	}
}

func contains(w []int, c int) bool {
	for _, x := range w {
		if x == c {
			return true
		}
	}
	return false
}
