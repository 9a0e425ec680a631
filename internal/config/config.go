package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	// Window buffer
	WindowSize  int
	ShiftMargin int

	// Pagination
	FallbackPageCount int
	ViewportWidth     int // Used until the terminal reports its real size.
	ViewportHeight    int

	// Chapter loading
	LoadRetryWait time.Duration

	// PDF chapter grouping
	PDFPagesPerChapter int

	// Bookmark persistence
	BookmarkDBPath string

	// Logging
	LogLevel string
	LogFile  string
}

func Load() Config {
	cfg := Config{
		WindowSize:  envInt("BOOKPAGER_WINDOW_SIZE", 5),
		ShiftMargin: envInt("BOOKPAGER_SHIFT_MARGIN", 0),

		FallbackPageCount: envInt("BOOKPAGER_FALLBACK_PAGE_COUNT", 20),
		ViewportWidth:     envInt("BOOKPAGER_VIEWPORT_WIDTH", 80),
		ViewportHeight:    envInt("BOOKPAGER_VIEWPORT_HEIGHT", 24),

		LoadRetryWait: envDuration("BOOKPAGER_LOAD_RETRY_WAIT", 250*time.Millisecond),

		PDFPagesPerChapter: envInt("BOOKPAGER_PDF_PAGES_PER_CHAPTER", 10),

		BookmarkDBPath: envOr("BOOKPAGER_BOOKMARK_DB", defaultBookmarkPath()),

		LogLevel: envOr("BOOKPAGER_LOG_LEVEL", "info"),
		LogFile:  os.Getenv("BOOKPAGER_LOG_FILE"),
	}

	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 5
	}
	if cfg.ShiftMargin < 0 {
		cfg.ShiftMargin = 0
	}
	if cfg.ShiftMargin >= cfg.WindowSize/2 {
		cfg.ShiftMargin = cfg.WindowSize/2 - 1
		if cfg.ShiftMargin < 0 {
			cfg.ShiftMargin = 0
		}
	}
	if cfg.FallbackPageCount <= 0 {
		cfg.FallbackPageCount = 20
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 80
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 24
	}
	if cfg.LoadRetryWait <= 0 {
		cfg.LoadRetryWait = 250 * time.Millisecond
	}
	if cfg.PDFPagesPerChapter <= 0 {
		cfg.PDFPagesPerChapter = 10
	}

	return cfg
}

func defaultBookmarkPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "bookpager", "bookmarks.db")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
