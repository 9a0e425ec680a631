package source

import (
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/dgallion1/bookpager/internal/book"
)

// MarkdownSource reads a Markdown book using goldmark. Chapters split at the
// shallowest heading level present in the document, so a book using only
// "##" headings still splits per section.
type MarkdownSource struct {
	title    string
	chapters []book.ChapterContent
}

// OpenMarkdown opens a .md book file.
func OpenMarkdown(path string) (*MarkdownSource, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewMarkdownSource(titleFromPath(path), src)
}

// NewMarkdownSource parses markdown bytes into chapters.
func NewMarkdownSource(title string, src []byte) (*MarkdownSource, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(gmtext.NewReader(src))

	// Find the shallowest heading level to split on.
	splitLevel := 0
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			if splitLevel == 0 || h.Level < splitLevel {
				splitLevel = h.Level
			}
		}
	}

	s := &MarkdownSource{title: title}

	var curTitle string
	var curText bytes.Buffer
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

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == splitLevel {
			flush()
			curTitle = string(h.Text(src))
			curText.Reset()
			started = true
			continue
		}
		t := mdText(n, src)
		if t == "" {
			continue
		}
		started = true
		if curText.Len() > 0 {
			curText.WriteString("\n\n")
		}
		if h, ok := n.(*ast.Heading); ok {
			// Deeper headings stay inside the chapter as section titles.
			curText.WriteString(string(h.Text(src)))
			continue
		}
		curText.WriteString(t)
	}
	flush()

	return s, nil
}

// mdText gets the plain-text content of a goldmark AST node.
func mdText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(mdText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}

func (s *MarkdownSource) Title() string     { return s.title }
func (s *MarkdownSource) ChapterCount() int { return len(s.chapters) }
func (s *MarkdownSource) Close() error      { return nil }

func (s *MarkdownSource) LoadChapter(ctx context.Context, index int) (*book.ChapterContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkIndex(index, len(s.chapters)); err != nil {
		return nil, err
	}
	c := s.chapters[index]
	return &c, nil
}
