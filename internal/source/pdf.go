package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/bookpager/internal/book"
)

// DefaultPDFPagesPerChapter is the source-page group size used when a PDF
// carries no usable outline.
const DefaultPDFPagesPerChapter = 10

// PDFSource reads a PDF book. PDFs have no chapter structure the library can
// rely on, so fixed groups of source pages are served as chapters; text is
// extracted per group on demand.
type PDFSource struct {
	f      *os.File
	r      *pdflib.Reader
	title  string
	groups [][2]int // inclusive 1-based source page ranges
}

// OpenPDF opens a .pdf book file with the default group size.
func OpenPDF(path string) (*PDFSource, error) {
	return OpenPDFGrouped(path, DefaultPDFPagesPerChapter)
}

// OpenPDFGrouped opens a .pdf book file with pagesPerChapter source pages
// per chapter.
func OpenPDFGrouped(path string, pagesPerChapter int) (*PDFSource, error) {
	if pagesPerChapter < 1 {
		pagesPerChapter = DefaultPDFPagesPerChapter
	}
	f, r, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	s := &PDFSource{f: f, r: r, title: titleFromPath(path)}
	n := r.NumPage()
	for start := 1; start <= n; start += pagesPerChapter {
		end := start + pagesPerChapter - 1
		if end > n {
			end = n
		}
		s.groups = append(s.groups, [2]int{start, end})
	}
	if len(s.groups) == 0 {
		f.Close()
		return nil, fmt.Errorf("pdf has no pages")
	}
	return s, nil
}

func (s *PDFSource) Title() string     { return s.title }
func (s *PDFSource) ChapterCount() int { return len(s.groups) }
func (s *PDFSource) Close() error      { return s.f.Close() }

func (s *PDFSource) LoadChapter(ctx context.Context, index int) (*book.ChapterContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkIndex(index, len(s.groups)); err != nil {
		return nil, err
	}
	g := s.groups[index]

	var blocks []string
	for p := g[0]; p <= g[1]; p++ {
		page := s.r.Page(p)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, &book.LoadError{Chapter: index, Err: fmt.Errorf("page %d: %w", p, err)}
		}
		if t := strings.TrimSpace(text); t != "" {
			blocks = append(blocks, t)
		}
	}

	title := fmt.Sprintf("Pages %d-%d", g[0], g[1])
	if g[0] == g[1] {
		title = fmt.Sprintf("Page %d", g[0])
	}
	return &book.ChapterContent{
		Index: index,
		Title: title,
		Text:  strings.Join(blocks, "\n\n"),
	}, nil
}
