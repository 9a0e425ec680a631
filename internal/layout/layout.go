// Package layout paginates chapter text for a fixed viewport. It is a pure
// function of (text, viewport) and knows nothing about chapters, windows, or
// global page indices; cross-window decisions belong to the navigation layer.
package layout

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
)

// Viewport is the drawable area in character cells.
type Viewport struct {
	Width  int
	Height int
}

// Page is one screenful of wrapped lines. StartOffset is the rune offset of
// the page's first line within the original text; it is stable enough to
// relocate a reader after reflow even though page numbers are not.
type Page struct {
	Lines       []string
	StartOffset int
}

type visualLine struct {
	text   string
	offset int
}

// Paginate splits text into pages of at most vp.Height lines, each at most
// vp.Width cells wide. Empty text yields a single empty page so every
// chapter occupies at least one page.
func Paginate(text string, vp Viewport) []Page {
	if vp.Width < 1 {
		vp.Width = 1
	}
	if vp.Height < 1 {
		vp.Height = 1
	}

	var visuals []visualLine
	offset := 0
	for _, src := range strings.Split(text, "\n") {
		srcRunes := len([]rune(src))
		consumed := 0
		for _, line := range strings.Split(wordwrap.String(src, vp.Width), "\n") {
			for _, piece := range hardBreak(line, vp.Width) {
				visuals = append(visuals, visualLine{text: piece, offset: offset + consumed})
				consumed += len([]rune(piece))
			}
			consumed++ // the whitespace the wrap point replaced
			if consumed > srcRunes {
				consumed = srcRunes
			}
		}
		offset += srcRunes + 1
	}

	if len(visuals) == 0 {
		return []Page{{Lines: []string{""}}}
	}

	var pages []Page
	for start := 0; start < len(visuals); start += vp.Height {
		end := min(start+vp.Height, len(visuals))
		p := Page{StartOffset: visuals[start].offset}
		for _, v := range visuals[start:end] {
			p.Lines = append(p.Lines, v.text)
		}
		pages = append(pages, p)
	}
	return pages
}

// hardBreak splits a run that wordwrap could not break (a single word wider
// than the viewport) at cell boundaries. Width is measured in display cells
// so double-width runes count as two.
func hardBreak(line string, width int) []string {
	if runewidth.StringWidth(line) <= width {
		return []string{line}
	}
	var parts []string
	var cur strings.Builder
	w := 0
	for _, r := range line {
		rw := runewidth.RuneWidth(r)
		if w+rw > width && cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
			w = 0
		}
		cur.WriteRune(r)
		w += rw
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// PageForOffset returns the index of the page containing the given rune
// offset. Offsets past the end resolve to the last page.
func PageForOffset(pages []Page, offset int) int {
	for i := len(pages) - 1; i >= 0; i-- {
		if pages[i].StartOffset <= offset {
			return i
		}
	}
	return 0
}
