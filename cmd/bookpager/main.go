package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgallion1/bookpager/internal/book"
	"github.com/dgallion1/bookpager/internal/bookmark"
	"github.com/dgallion1/bookpager/internal/config"
	"github.com/dgallion1/bookpager/internal/layout"
	"github.com/dgallion1/bookpager/internal/reader"
	"github.com/dgallion1/bookpager/internal/source"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <book file>\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "supported formats: .txt .md .html .epub .pdf .docx\n")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg := config.Load()
	log := newLogger(cfg)

	src, err := openSource(path, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer src.Close()

	store, err := bookmark.Open(cfg.BookmarkDBPath, log)
	if err != nil {
		// The reader still works without persistence.
		log.Warn("bookmark store unavailable", "error", err)
		store = nil
	} else {
		defer store.Close()
	}

	sess := reader.New(src, reader.Options{
		WindowSize:        cfg.WindowSize,
		ShiftMargin:       cfg.ShiftMargin,
		FallbackPageCount: cfg.FallbackPageCount,
		Viewport:          layout.Viewport{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight},
		RetryWait:         cfg.LoadRetryWait,
	}, log)

	bookID := bookIDFor(path)
	ctx := context.Background()

	loc, err := openSession(ctx, sess, store, bookID)
	if err != nil {
		// A load error leaves the session usable with unavailable slots
		// marked; anything else is fatal.
		if sess.WindowInfo().TotalChapters == 0 {
			fmt.Fprintf(os.Stderr, "open session: %v\n", err)
			os.Exit(1)
		}
		log.Warn("opened with unavailable chapters", "error", err)
	}

	m := newReaderModel(sess, store, bookID, loc, log)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "reader error: %v\n", err)
		os.Exit(1)
	}

	// Persist the final position on clean exit.
	if store != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := store.Save(saveCtx, sess.Bookmark(bookID)); err != nil {
			log.Warn("final bookmark save failed", "error", err)
		}
	}
}

// openSession initializes at the stored bookmark when one exists, otherwise
// at the first chapter.
func openSession(ctx context.Context, sess *reader.Session, store *bookmark.Store, bookID string) (book.PageLocation, error) {
	if store != nil {
		if bm, ok, loadErr := store.Load(ctx, bookID); loadErr == nil && ok {
			if bm.Chapter >= 0 && bm.Chapter < sess.WindowInfo().TotalChapters {
				return sess.InitializeFromBookmark(ctx, bm)
			}
		}
	}
	return sess.Initialize(ctx, 0)
}

// openSource opens the book file, honoring the configured PDF chapter
// grouping for formats without structural chapters.
func openSource(path string, cfg config.Config) (source.Source, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return source.OpenPDFGrouped(path, cfg.PDFPagesPerChapter)
	}
	return source.ForFile(path)
}

// bookIDFor derives a stable bookmark key from the file path.
func bookIDFor(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// newLogger builds the process logger. The terminal belongs to the TUI, so
// logs go to a file when configured and are discarded otherwise.
func newLogger(cfg config.Config) *slog.Logger {
	var w io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			w = f
		}
	}
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
