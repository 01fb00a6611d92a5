// Package session owns one open log together with the caches derived from
// it and the current filter.
//
// A Session is not safe for concurrent use. Work that must run elsewhere
// takes a Snapshot (for whole-view exports) or a Scan (to extend the index
// off the owner goroutine) and hands results back explicitly.
package session

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tinytelemetry/vxlview/internal/entrycache"
	"github.com/tinytelemetry/vxlview/internal/filter"
	"github.com/tinytelemetry/vxlview/internal/filtercache"
	"github.com/tinytelemetry/vxlview/internal/render"
	"github.com/tinytelemetry/vxlview/internal/vxl"
)

var (
	// ErrNotOpen is returned by operations that need an open log.
	ErrNotOpen = errors.New("session: no log file open")
	// ErrNoEntries rejects logs without any entries.
	ErrNoEntries = errors.New("session: there are no entries in the log file")
	// ErrNotFound means the requested position does not exist under the
	// current filter.
	ErrNotFound = errors.New("session: entry not found")
)

// Options configures a Session.
type Options struct {
	// Location is used for entry timestamps; nil means UTC.
	Location *time.Location
	// OnCountChanged is called when a scan discovers that fewer entries
	// pass the filter than the current count estimate.
	OnCountChanged func(count int)
}

// Session is the viewer state for at most one open log.
type Session struct {
	opts Options

	log     *vxl.Log
	entries *entrycache.Cache
	index   *filtercache.Index
	// genBase is added to the index generation so Generation keeps rising
	// across re-opens.
	genBase uint64

	criteria filter.Criteria
	pred     *filter.Predicate
}

// New returns a session with no log open and an empty filter.
func New(opts Options) *Session {
	return &Session{opts: opts, pred: filter.MatchAll()}
}

// Open opens the log at path. The previously open log, if any, stays
// untouched until the new one has passed every check; it is then closed and
// its caches released before the new caches take over. The current filter
// carries over to the new log.
func (s *Session) Open(path string) error {
	l, err := vxl.Open(path)
	if err != nil {
		return fmt.Errorf("session: open %s: %w", path, err)
	}
	if l.Count() == 0 {
		l.Close()
		return fmt.Errorf("%w: %s", ErrNoEntries, path)
	}
	entries := entrycache.New(l, s.opts.Location)

	if err := s.Close(); err != nil {
		log.Printf("session: closing previous log: %v", err)
	}

	s.log = l
	s.entries = entries
	s.index = filtercache.New(entries, s.pred)
	s.index.OnCountChanged = s.opts.OnCountChanged

	log.Printf("session: opened %s (%d entries)", path, l.Count())
	return nil
}

// Close closes the open log and drops every cache derived from it.
func (s *Session) Close() error {
	if s.log == nil {
		return nil
	}
	// Derived caches go before the store they read from.
	s.genBase = s.Generation() + 1
	s.index = nil
	s.entries.Release()
	s.entries = nil
	err := s.log.Close()
	s.log = nil
	return err
}

// OnCountChanged replaces the count-changed hook, including on the index of
// the log that is already open.
func (s *Session) OnCountChanged(fn func(count int)) {
	s.opts.OnCountChanged = fn
	if s.index != nil {
		s.index.OnCountChanged = fn
	}
}

// IsOpen reports whether a log is open.
func (s *Session) IsOpen() bool { return s.log != nil }

// Path returns the path of the open log, or "".
func (s *Session) Path() string {
	if s.log == nil {
		return ""
	}
	return s.log.Path()
}

// SourceApplication returns the name of the application that wrote the log.
func (s *Session) SourceApplication() string {
	if s.log == nil {
		return ""
	}
	return s.log.SourceApplication()
}

// Components lists the component names of the open log.
func (s *Session) Components() []string {
	if s.log == nil {
		return nil
	}
	return s.log.Components()
}

// RawCount returns the number of entries in the open log.
func (s *Session) RawCount() int {
	if s.log == nil {
		return 0
	}
	return s.log.Count()
}

// Component, File and Function resolve interned names of the open log, so a
// Session can serve as the names table for filters and rendering.
func (s *Session) Component(i uint16) string {
	if s.log == nil {
		return "?"
	}
	return s.log.Component(i)
}

func (s *Session) File(i uint16) string {
	if s.log == nil {
		return "?"
	}
	return s.log.File(i)
}

func (s *Session) Function(i uint16) string {
	if s.log == nil {
		return "?"
	}
	return s.log.Function(i)
}

// Names returns the interned-name resolver of the session.
func (s *Session) Names() render.Names { return s }

// Filter returns a copy of the current criteria.
func (s *Session) Filter() filter.Criteria { return s.criteria.Clone() }

// SetFilter replaces the filter. Setting criteria equal to the current ones
// keeps the resolved index.
func (s *Session) SetFilter(c filter.Criteria) error {
	if c.Equal(s.criteria) {
		return nil
	}
	pred, err := filter.Compile(c, s)
	if err != nil {
		return err
	}
	s.criteria = c.Clone()
	s.pred = pred
	if s.index != nil {
		s.index.SetMatcher(pred)
	}
	return nil
}

// Count returns the current estimate of how many entries pass the filter.
// It only ever shrinks for a given filter, as scans find the true end.
func (s *Session) Count() int {
	if s.index == nil {
		return 0
	}
	return s.index.Estimate()
}

// CountConfirmed reports whether Count is exact.
func (s *Session) CountConfirmed() bool {
	return s.index != nil && s.index.Confirmed()
}

// Generation changes whenever the filter or the open log changes. It never
// decreases.
func (s *Session) Generation() uint64 {
	if s.index == nil {
		return s.genBase
	}
	return s.genBase + s.index.Generation()
}

// RawIndex resolves a display index to its raw index.
func (s *Session) RawIndex(display int) (int, error) {
	if s.index == nil {
		return -1, ErrNotOpen
	}
	raw, err := s.index.Resolve(display)
	return raw, mapErr(err)
}

// Entry returns the entry at display position display.
func (s *Session) Entry(display int) (*entrycache.Entry, error) {
	raw, err := s.RawIndex(display)
	if err != nil {
		return nil, err
	}
	return s.Raw(raw)
}

// Cached returns the entry at display only if its position is already
// resolved; it never scans.
func (s *Session) Cached(display int) (*entrycache.Entry, bool) {
	if s.index == nil {
		return nil, false
	}
	raw, ok := s.index.Lookup(display)
	if !ok {
		return nil, false
	}
	e, err := s.entries.Get(raw)
	return e, err == nil
}

// Raw returns the entry at raw index raw, ignoring the filter.
func (s *Session) Raw(raw int) (*entrycache.Entry, error) {
	if s.entries == nil {
		return nil, ErrNotOpen
	}
	e, err := s.entries.Get(raw)
	return e, mapErr(err)
}

// FindDisplayIndex returns the display position of raw under the current
// filter, or ErrNotFound if the filter hides it.
func (s *Session) FindDisplayIndex(raw int) (int, error) {
	if s.index == nil {
		return -1, ErrNotOpen
	}
	d, err := s.index.ReverseResolve(raw)
	return d, mapErr(err)
}

// Text renders the entry at display. A truncated rendering is returned
// together with render.ErrTruncated.
func (s *Session) Text(display int, long bool) (string, error) {
	e, err := s.Entry(display)
	if err != nil {
		return "", err
	}
	return render.Render(e, s, long)
}

// StartScan prepares a background scan resolving display indices up to
// target. The scan reads through its own entry cache over the open log, so
// Run may be called from any goroutine; hand it back with CommitScan.
func (s *Session) StartScan(target int) (*filtercache.Scan, error) {
	if s.index == nil {
		return nil, ErrNotOpen
	}
	return s.index.NewScan(target, entrycache.New(s.log, s.opts.Location)), nil
}

// CommitScan applies a finished scan. It returns filtercache.ErrStale if the
// filter or the log changed since StartScan.
func (s *Session) CommitScan(sc *filtercache.Scan) error {
	if s.index == nil {
		return ErrNotOpen
	}
	return s.index.Commit(sc)
}

// Snapshot is what a worker needs to rebuild the current view on its own.
type Snapshot struct {
	Path              string
	SourceApplication string
	Criteria          filter.Criteria
	Location          *time.Location
}

// Snapshot captures the open log and filter.
func (s *Session) Snapshot() (Snapshot, error) {
	if s.log == nil {
		return Snapshot{}, ErrNotOpen
	}
	return Snapshot{
		Path:              s.log.Path(),
		SourceApplication: s.log.SourceApplication(),
		Criteria:          s.criteria.Clone(),
		Location:          s.opts.Location,
	}, nil
}

// Stats reports cache activity.
type Stats struct {
	RawCount     int
	Count        int
	Confirmed    bool
	Resolved     int
	Materialized int
	Scanned      int
}

// Stats returns a snapshot of cache counters.
func (s *Session) Stats() Stats {
	if s.index == nil {
		return Stats{}
	}
	return Stats{
		RawCount:     s.log.Count(),
		Count:        s.index.Estimate(),
		Confirmed:    s.index.Confirmed(),
		Resolved:     s.index.Resolved(),
		Materialized: s.entries.Materialized(),
		Scanned:      s.index.Scanned(),
	}
}

func mapErr(err error) error {
	if errors.Is(err, filtercache.ErrNotFound) || errors.Is(err, entrycache.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
