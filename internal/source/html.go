package source

import (
	"context"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/bookpager/internal/book"
)

// HTMLSource reads a single-file HTML book. Chapters split at the shallowest
// heading level present in the body.
type HTMLSource struct {
	title    string
	chapters []book.ChapterContent
}

// OpenHTML opens a .html book file.
func OpenHTML(path string) (*HTMLSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewHTMLSource(titleFromPath(path), f)
}

// NewHTMLSource parses an HTML document into chapters.
func NewHTMLSource(fallbackTitle string, r io.Reader) (*HTMLSource, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	s := &HTMLSource{title: fallbackTitle}
	if t := findTitle(doc); t != "" {
		s.title = t
	}

	root := findBody(doc)
	if root == nil {
		root = doc
	}

	splitLevel := shallowestHeading(root)

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
	appendText := func(t string) {
		if t == "" {
			return
		}
		started = true
		if curText.Len() > 0 {
			curText.WriteString("\n\n")
		}
		curText.WriteString(t)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				if level == splitLevel {
					flush()
					curTitle = textContent(n)
					curText.Reset()
					started = true
				} else {
					appendText(textContent(n))
				}
				return
			}
			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			case "p", "li", "td", "blockquote", "pre":
				appendText(textContent(n))
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	flush()

	return s, nil
}

func (s *HTMLSource) Title() string     { return s.title }
func (s *HTMLSource) ChapterCount() int { return len(s.chapters) }
func (s *HTMLSource) Close() error      { return nil }

func (s *HTMLSource) LoadChapter(ctx context.Context, index int) (*book.ChapterContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkIndex(index, len(s.chapters)); err != nil {
		return nil, err
	}
	c := s.chapters[index]
	return &c, nil
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

// shallowestHeading returns the smallest heading level under n, or 1 if the
// subtree has no headings.
func shallowestHeading(n *html.Node) int {
	level := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if l := headingLevel(n.Data); l > 0 && (level == 0 || l < level) {
				level = l
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	if level == 0 {
		return 1
	}
	return level
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
