// Package book holds the shared domain types for the paging engine.
// It has no dependencies on other bookpager packages to avoid import cycles.
package book

// ChapterContent is the parsed markup of a single chapter.
type ChapterContent struct {
	Index int    // Chapter index in [0, totalChapters)
	Title string // Chapter heading (may be empty)
	Text  string // Plain-text markup, paragraphs separated by blank lines
}

// PageLocation is a materialized view of one page's position. It is derived
// from current chapter page counts and is always cheap to regenerate; it is
// never the source of truth.
type PageLocation struct {
	GlobalPage int // Zero-based index across the whole document
	Chapter    int // Owning chapter index
	Page       int // Page index within the chapter
	CharOffset int // Rune offset of the page start within the chapter text
}

// PageContent is what the rendering layer receives for one page.
// Unavailable marks a page whose chapter could not be loaded; the renderer
// shows a discrete marker instead of blank content.
type PageContent struct {
	Location    PageLocation
	Lines       []string
	Unavailable bool
}

// WindowInfo is a read-only snapshot of the buffer state published to
// observers. Chapters is sorted ascending and contiguous.
type WindowInfo struct {
	ActiveChapter int
	Chapters      []int // Window members (guaranteed-resident set)
	Loaded        []int // Window members whose content is actually resident
	Unavailable   []int // Window members whose load failed persistently
	TotalChapters int
	TotalPages    int // Total global pages under current page counts
}

// Bookmark is a persisted reading position. CharOffset survives repagination;
// Page is only valid for the layout it was recorded under.
type Bookmark struct {
	BookID     string
	Chapter    int
	Page       int
	CharOffset int
}
