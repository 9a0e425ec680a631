package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/bookpager/internal/book"
)

// DOCXSource reads a .docx book. Chapters split on Heading1 paragraphs;
// deeper headings stay inside the chapter text.
type DOCXSource struct {
	title    string
	chapters []book.ChapterContent
}

// OpenDOCX opens a .docx book file.
func OpenDOCX(path string) (*DOCXSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	s := &DOCXSource{title: titleFromPath(path)}

	var curTitle string
	var curText strings.Builder
	started := false

	flush := func() {
		text := strings.TrimSpace(curText.String())
		if !started || (text == "" && curTitle == "") {
			return
		}
		s.chapters = append(s.chapters, book.ChapterContent{
			Index: len(s.chapters),
			Title: curTitle,
			Text:  text,
		})
	}

	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		if docxHeadingLevel(para) == 1 {
			flush()
			curTitle = text
			curText.Reset()
			started = true
			continue
		}
		started = true
		if curText.Len() > 0 {
			curText.WriteString("\n\n")
		}
		curText.WriteString(text)
	}
	flush()

	return s, nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	for level := 1; level <= 6; level++ {
		if style == fmt.Sprintf("heading%d", level) {
			return level
		}
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func (s *DOCXSource) Title() string     { return s.title }
func (s *DOCXSource) ChapterCount() int { return len(s.chapters) }
func (s *DOCXSource) Close() error      { return nil }

func (s *DOCXSource) LoadChapter(ctx context.Context, index int) (*book.ChapterContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkIndex(index, len(s.chapters)); err != nil {
		return nil, err
	}
	c := s.chapters[index]
	return &c, nil
}
