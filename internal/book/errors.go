package book

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange reports a global page index outside [0, totalPages).
	ErrOutOfRange = errors.New("global page index out of range")

	// ErrInvalidChapter reports a chapter index outside [0, totalChapters).
	ErrInvalidChapter = errors.New("invalid chapter index")

	// ErrInvalidPage reports an in-chapter page index beyond the chapter's
	// known page count. Bad input is rejected, never clamped.
	ErrInvalidPage = errors.New("invalid in-chapter page index")

	// ErrNotInitialized reports a navigation call before Initialize.
	ErrNotInitialized = errors.New("session not initialized")

	// ErrNotResident reports a page-content request for a chapter outside
	// the resident window. Navigate to the page first.
	ErrNotResident = errors.New("chapter not resident")
)

// LoadError wraps a chapter source failure for one chapter.
type LoadError struct {
	Chapter int
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load chapter %d: %v", e.Chapter, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
