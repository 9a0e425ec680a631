package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/bookpager/internal/book"
	"github.com/dgallion1/bookpager/internal/bookmark"
	"github.com/dgallion1/bookpager/internal/layout"
	"github.com/dgallion1/bookpager/internal/reader"
	"github.com/dgallion1/bookpager/internal/window"
)

var (
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8")).Padding(0, 1)
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	unavailableStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Italic(true)
	contentStyle     = lipgloss.NewStyle().Padding(0, 2)
)

// navigatedMsg carries the result of a navigation command.
type navigatedMsg struct {
	loc book.PageLocation
	err error
}

// readerModel is the terminal front end. All engine state lives in the
// session; the model only holds the last resolved location and render cache.
type readerModel struct {
	sess   *reader.Session
	store  *bookmark.Store
	bookID string
	log    *slog.Logger

	loc    book.PageLocation
	width  int
	height int
	status string
	err    error
}

func newReaderModel(sess *reader.Session, store *bookmark.Store, bookID string, loc book.PageLocation, log *slog.Logger) readerModel {
	return readerModel{
		sess:   sess,
		store:  store,
		bookID: bookID,
		log:    log,
		loc:    loc,
		width:  80,
		height: 24,
	}
}

func (m readerModel) Init() tea.Cmd { return nil }

func (m readerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		loc, err := m.sess.Repaginate(context.Background(), layout.Viewport{
			Width:  max(20, msg.Width-4),
			Height: max(1, msg.Height-3), // header, footer, spacer
		})
		if err == nil {
			m.loc = loc
		}
		return m, nil

	case tea.KeyMsg:
		m.status = ""
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "right", "l", " ", "pgdown":
			return m, m.goToGlobal(m.loc.GlobalPage + 1)
		case "left", "h", "pgup":
			return m, m.goToGlobal(m.loc.GlobalPage - 1)
		case "g", "home":
			return m, m.goToGlobal(0)
		case "G", "end":
			return m, m.goToGlobal(m.sess.WindowInfo().TotalPages - 1)
		case "n":
			return m, m.goToChapter(m.loc.Chapter + 1)
		case "p":
			return m, m.goToChapter(m.loc.Chapter - 1)
		case "b":
			return m, m.saveBookmark()
		}
		return m, nil

	case navigatedMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		m.loc = msg.loc
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil
	}
	return m, nil
}

type statusMsg string

// goToGlobal navigates to a global page off the UI goroutine; out-of-range
// requests at the book edges are silently ignored.
func (m readerModel) goToGlobal(global int) tea.Cmd {
	if global < 0 || global >= m.sess.WindowInfo().TotalPages {
		return nil
	}
	sess, cur := m.sess, m.loc
	return func() tea.Msg {
		loc, err := sess.NavigateToGlobalPage(context.Background(), global)
		if err != nil {
			if loc == (book.PageLocation{}) {
				loc = cur
			}
			return navigatedMsg{loc: loc, err: err}
		}
		return navigatedMsg{loc: loc}
	}
}

func (m readerModel) goToChapter(chapter int) tea.Cmd {
	if chapter < 0 || chapter >= m.sess.WindowInfo().TotalChapters {
		return nil
	}
	sess, cur := m.sess, m.loc
	return func() tea.Msg {
		loc, err := sess.NavigateToChapter(context.Background(), chapter, 0)
		if err != nil {
			if loc == (book.PageLocation{}) {
				loc = cur
			}
			return navigatedMsg{loc: loc, err: err}
		}
		return navigatedMsg{loc: loc}
	}
}

func (m readerModel) saveBookmark() tea.Cmd {
	if m.store == nil {
		return func() tea.Msg { return statusMsg("bookmarks unavailable") }
	}
	store, bm := m.store, m.sess.Bookmark(m.bookID)
	return func() tea.Msg {
		if err := store.Save(context.Background(), bm); err != nil {
			return statusMsg("bookmark save failed")
		}
		return statusMsg("position saved")
	}
}

func (m readerModel) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader() + "\n")

	pc, err := m.sess.PageContent(m.loc.GlobalPage)
	switch {
	case err != nil:
		b.WriteString(contentStyle.Render(unavailableStyle.Render("page not loaded: "+err.Error())) + "\n")
	case pc.Unavailable:
		b.WriteString(contentStyle.Render(unavailableStyle.Render(
			fmt.Sprintf("chapter %d could not be loaded; navigate again to retry", pc.Location.Chapter+1))) + "\n")
	default:
		for _, line := range pc.Lines {
			b.WriteString(contentStyle.Render(line) + "\n")
		}
	}

	b.WriteString("\n" + m.renderFooter())
	return b.String()
}

func (m readerModel) renderHeader() string {
	info := m.sess.WindowInfo()
	title := m.sess.Title()
	if lipgloss.Width(title) > m.width/2 {
		title = title[:m.width/2]
	}
	left := headerStyle.Render(title)
	right := footerStyle.Render(fmt.Sprintf(" ch %d/%d · page %d/%d ",
		m.loc.Chapter+1, info.TotalChapters, m.loc.GlobalPage+1, info.TotalPages))
	if m.sess.Phase() == window.PhaseStartup {
		right += footerStyle.Render("· opening ")
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m readerModel) renderFooter() string {
	if m.status != "" {
		return footerStyle.Render(m.status)
	}
	help := []string{
		keyStyle.Render("←/→") + footerStyle.Render(" page"),
		keyStyle.Render("n/p") + footerStyle.Render(" chapter"),
		keyStyle.Render("g/G") + footerStyle.Render(" start/end"),
		keyStyle.Render("b") + footerStyle.Render(" bookmark"),
		keyStyle.Render("q") + footerStyle.Render(" quit"),
	}
	return strings.Join(help, "  ")
}
