package source

import (
	"context"

	"github.com/dgallion1/bookpager/internal/book"
)

// MemorySource serves chapters already held in memory. Used by tests and by
// callers that parsed content themselves.
type MemorySource struct {
	title    string
	chapters []book.ChapterContent
}

// NewMemorySource builds a source from pre-parsed chapters. Indices are
// rewritten to match document order.
func NewMemorySource(title string, chapters []book.ChapterContent) *MemorySource {
	cs := make([]book.ChapterContent, len(chapters))
	copy(cs, chapters)
	for i := range cs {
		cs[i].Index = i
	}
	return &MemorySource{title: title, chapters: cs}
}

// NewMemoryTexts builds a source from plain chapter texts.
func NewMemoryTexts(title string, texts []string) *MemorySource {
	cs := make([]book.ChapterContent, len(texts))
	for i, t := range texts {
		cs[i] = book.ChapterContent{Index: i, Text: t}
	}
	return &MemorySource{title: title, chapters: cs}
}

func (m *MemorySource) Title() string     { return m.title }
func (m *MemorySource) ChapterCount() int { return len(m.chapters) }
func (m *MemorySource) Close() error      { return nil }

func (m *MemorySource) LoadChapter(ctx context.Context, index int) (*book.ChapterContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkIndex(index, len(m.chapters)); err != nil {
		return nil, err
	}
	c := m.chapters[index]
	return &c, nil
}
