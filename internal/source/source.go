// Package source opens book files and serves their chapters to the paging
// engine. A Source knows nothing about windows or global pages; it only maps
// a chapter index to parsed content.
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dgallion1/bookpager/internal/book"
)

// Source supplies parsed chapters for one open book. LoadChapter is treated
// as slow and possibly re-entrant; implementations must tolerate repeated
// loads of the same chapter.
type Source interface {
	// Title returns the book title.
	Title() string

	// ChapterCount returns the number of chapters in document order.
	ChapterCount() int

	// LoadChapter returns the content of one chapter. It fails with
	// book.ErrInvalidChapter for an out-of-range index and wraps I/O or
	// parse errors in *book.LoadError.
	LoadChapter(ctx context.Context, index int) (*book.ChapterContent, error)

	// Close releases any underlying file handles.
	Close() error
}

// SupportedExtensions lists file extensions this package can open.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".epub":     true,
	".pdf":      true,
	".docx":     true,
}

// ForFile opens the appropriate source for a book file.
func ForFile(path string) (Source, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt":
		return OpenText(path)
	case ".md", ".markdown":
		return OpenMarkdown(path)
	case ".html", ".htm":
		return OpenHTML(path)
	case ".epub":
		return OpenEPUB(path)
	case ".pdf":
		return OpenPDF(path)
	case ".docx":
		return OpenDOCX(path)
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(path string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// checkIndex validates a chapter index against a count.
func checkIndex(index, count int) error {
	if index < 0 || index >= count {
		return book.ErrInvalidChapter
	}
	return nil
}

// titleFromPath derives a fallback book title from a filename.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
