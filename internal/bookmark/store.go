// Package bookmark persists reading positions in a local SQLite database,
// one row per book. Positions store the character offset alongside the page
// coordinate so they survive repagination under a different viewport.
package bookmark

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dgallion1/bookpager/internal/book"
)

const schema = `
CREATE TABLE IF NOT EXISTS bookmarks (
    book_id     TEXT PRIMARY KEY,
    chapter     INTEGER NOT NULL,
    page        INTEGER NOT NULL,
    char_offset INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
`

// Store is a SQLite-backed bookmark store. Safe for concurrent use.
type Store struct {
	db  *sql.DB
	log *slog.Logger
	mu  sync.Mutex
}

// Open creates or opens the bookmark database at path and bootstraps the
// schema. The parent directory is created if missing.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create bookmark directory: %w", err)
	}

	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open bookmark database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to bookmark database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bookmark schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Save upserts the position for a book.
func (s *Store) Save(ctx context.Context, bm book.Bookmark) error {
	if bm.BookID == "" {
		return fmt.Errorf("save bookmark: empty book id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks (book_id, chapter, page, char_offset, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(book_id) DO UPDATE SET
			chapter = excluded.chapter,
			page = excluded.page,
			char_offset = excluded.char_offset,
			updated_at = excluded.updated_at
	`, bm.BookID, bm.Chapter, bm.Page, bm.CharOffset, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("save bookmark for %q: %w", bm.BookID, err)
	}
	s.log.Debug("bookmark saved",
		"book", bm.BookID, "chapter", bm.Chapter, "page", bm.Page)
	return nil
}

// Load returns the stored position for a book. The second return value is
// false when no bookmark exists.
func (s *Store) Load(ctx context.Context, bookID string) (book.Bookmark, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bm := book.Bookmark{BookID: bookID}
	err := s.db.QueryRowContext(ctx, `
		SELECT chapter, page, char_offset FROM bookmarks WHERE book_id = ?
	`, bookID).Scan(&bm.Chapter, &bm.Page, &bm.CharOffset)
	if err == sql.ErrNoRows {
		return book.Bookmark{}, false, nil
	}
	if err != nil {
		return book.Bookmark{}, false, fmt.Errorf("load bookmark for %q: %w", bookID, err)
	}
	return bm, true, nil
}

// Delete removes the stored position for a book. Deleting a missing bookmark
// is not an error.
func (s *Store) Delete(ctx context.Context, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("delete bookmark for %q: %w", bookID, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
