// Package tui is the terminal front end of the viewer.
//
// The list is virtual: each frame asks the session only for the rows on
// screen. Rows close to the resolved prefix of the filtered index are
// resolved in place; rows further out are left blank while a background
// scan extends the index, so no single frame scans the whole log.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/vxlview/internal/entrycache"
	"github.com/tinytelemetry/vxlview/internal/export"
	"github.com/tinytelemetry/vxlview/internal/filtercache"
	"github.com/tinytelemetry/vxlview/internal/session"
)

// DefaultScanAhead is how many display rows past the resolved prefix a frame
// may resolve synchronously.
const DefaultScanAhead = 200

// statusTTL is how long a status message stays on the status line.
const statusTTL = 10 * time.Second

// Options configures the viewer.
type Options struct {
	// ExportDir is where exports are written; "" means the current directory.
	ExportDir          string
	ReverseScrollWheel bool
	ScanAhead          int
}

// InputState holds the inline prompts.
type InputState struct {
	filterInput  textinput.Model
	filterActive bool

	gotoInput  textinput.Model
	gotoActive bool
}

// ModalStackState holds the modal stack.
type ModalStackState struct {
	modalStack []Modal
}

// ListState is the position of the virtual list.
type ListState struct {
	cursor int // selected display index
	offset int // display index of the first visible row
}

// Model is the viewer's Bubble Tea model. It owns the session; every session
// call happens on the Bubble Tea event loop.
type Model struct {
	InputState
	ModalStackState
	ListState

	sess *session.Session
	opts Options
	keys KeyMap

	width  int
	height int

	// minSeverity is the severity cycle position; 0 shows everything.
	minSeverity int

	scanInFlight bool

	job *export.Job

	status    string
	statusAt  time.Time
	lastError string

	inlineHandlers []inlineHandlerEntry

	ctx    context.Context
	cancel context.CancelFunc
}

// scanDoneMsg carries a finished background scan.
type scanDoneMsg struct {
	scan *filtercache.Scan
	err  error
}

// exportDoneMsg carries the result of an export job.
type exportDoneMsg struct {
	path  string
	stats export.Stats
	err   error
}

// New creates the viewer for sess, which should already have a log open.
func New(sess *session.Session, opts Options) *Model {
	if opts.ScanAhead <= 0 {
		opts.ScanAhead = DefaultScanAhead
	}

	filterInput := textinput.New()
	filterInput.Placeholder = "Show entries whose header or body contains..."
	filterInput.CharLimit = 200

	gotoInput := textinput.New()
	gotoInput.Placeholder = "Raw entry number"
	gotoInput.CharLimit = 12

	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		InputState: InputState{
			filterInput: filterInput,
			gotoInput:   gotoInput,
		},
		sess:   sess,
		opts:   opts,
		keys:   DefaultKeyMap(),
		ctx:    ctx,
		cancel: cancel,
	}
	m.inlineHandlers = []inlineHandlerEntry{
		{isActive: func(m *Model) bool { return m.filterActive }, handler: filterInputHandler{}},
		{isActive: func(m *Model) bool { return m.gotoActive }, handler: gotoInputHandler{}},
	}
	sess.OnCountChanged(m.countChanged)
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.syncView()
}

// Close stops background work. The session stays open.
func (m *Model) Close() {
	m.cancel()
	if m.job != nil {
		m.job.Cancel()
	}
}

func (m *Model) countChanged(n int) {
	m.setStatus(fmt.Sprintf("%d entries match the filter", n))
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.lastError = ""
	m.statusAt = time.Now()
}

func (m *Model) setError(err error) {
	log.Printf("tui: %v", err)
	m.lastError = err.Error()
	m.statusAt = time.Now()
}

// listHeight is the number of list rows on screen.
func (m *Model) listHeight() int {
	h := m.height - 2 // header and status line
	if m.filterActive || m.gotoActive {
		h--
	}
	return max(1, h)
}

// row returns the entry at display d if it can be produced without scanning
// more than ScanAhead rows past the resolved prefix.
func (m *Model) row(d int) (*entrycache.Entry, bool) {
	if e, ok := m.sess.Cached(d); ok {
		return e, true
	}
	if d >= m.sess.Stats().Resolved+m.opts.ScanAhead {
		return nil, false
	}
	e, err := m.sess.Entry(d)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			m.setError(err)
		}
		return nil, false
	}
	return e, true
}

// clamp keeps cursor and offset inside the list and the cursor on screen.
func (m *Model) clamp() {
	count := m.sess.Count()
	if m.cursor >= count {
		m.cursor = count - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// moveTo selects display index d.
func (m *Model) moveTo(d int) tea.Cmd {
	m.cursor = d
	return m.syncView()
}

// syncView clamps the list and makes sure the visible rows can be drawn. Rows
// within ScanAhead of the resolved prefix are resolved in place; anything
// further is handed to a background scan.
func (m *Model) syncView() tea.Cmd {
	if !m.sess.IsOpen() {
		return nil
	}
	m.clamp()
	if m.scanInFlight || m.sess.CountConfirmed() {
		return nil
	}
	last := min(m.offset+m.listHeight(), m.sess.Count()) - 1
	if last < 0 {
		return nil
	}
	if last >= m.sess.Stats().Resolved+m.opts.ScanAhead {
		return m.startScan(last)
	}
	// This may find the end of the log and confirm a smaller count.
	if _, err := m.sess.Entry(last); err != nil && !errors.Is(err, session.ErrNotFound) {
		m.setError(err)
	}
	m.clamp()
	return nil
}
