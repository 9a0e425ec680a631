package source

import (
	"bufio"
	"context"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/dgallion1/bookpager/internal/book"
)

// chapterHeading matches the heading lines used to split plain-text books.
var chapterHeading = regexp.MustCompile(`(?i)^\s*(chapter|part|book|prologue|epilogue)\b[^\r\n]*$`)

// TextSource reads a plain-text book. Chapter boundaries are heading lines;
// a file without headings is served as a single chapter. The source keeps
// the raw lines and assembles a chapter's text on demand.
type TextSource struct {
	title  string
	lines  []string
	bounds [][2]int // [start, end) line range per chapter
	titles []string
}

// OpenText opens a .txt book file.
func OpenText(path string) (*TextSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewTextSource(titleFromPath(path), f)
}

// NewTextSource builds a text source from a reader.
func NewTextSource(title string, r io.Reader) (*TextSource, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	s := &TextSource{title: title, lines: lines}

	var headings []int
	for i, line := range lines {
		if chapterHeading.MatchString(line) {
			headings = append(headings, i)
		}
	}

	if len(headings) == 0 {
		if len(lines) > 0 {
			s.bounds = [][2]int{{0, len(lines)}}
			s.titles = []string{title}
		}
		return s, nil
	}

	// Non-blank text before the first heading becomes an untitled opening
	// chapter.
	if hasContent(lines[:headings[0]]) {
		s.bounds = append(s.bounds, [2]int{0, headings[0]})
		s.titles = append(s.titles, "")
	}
	for i, h := range headings {
		end := len(lines)
		if i+1 < len(headings) {
			end = headings[i+1]
		}
		s.bounds = append(s.bounds, [2]int{h, end})
		s.titles = append(s.titles, strings.TrimSpace(lines[h]))
	}
	return s, nil
}

func hasContent(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}

func (s *TextSource) Title() string     { return s.title }
func (s *TextSource) ChapterCount() int { return len(s.bounds) }
func (s *TextSource) Close() error      { return nil }

func (s *TextSource) LoadChapter(ctx context.Context, index int) (*book.ChapterContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkIndex(index, len(s.bounds)); err != nil {
		return nil, err
	}
	b := s.bounds[index]
	text := strings.Join(s.lines[b[0]:b[1]], "\n")
	return &book.ChapterContent{
		Index: index,
		Title: s.titles[index],
		Text:  strings.Trim(text, "\n"),
	}, nil
}
