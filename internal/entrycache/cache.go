// Package entrycache materializes raw log records into display-ready
// entries on first access and keeps them for the life of the open log.
package entrycache

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tinytelemetry/vxlview/internal/vxl"
)

// TimeLayout is the short date/time form precomputed for every entry.
const TimeLayout = "2006-01-02 15:04:05.000"

// ErrNotFound is returned for raw indices outside the log or after Release.
var ErrNotFound = errors.New("entrycache: entry not found")

// Source is the raw record reader behind a Cache. *vxl.Log satisfies it.
type Source interface {
	Count() int
	Record(raw int) (vxl.Record, error)
}

// Entry is a decoded record with its display strings precomputed.
// Entries handed out by a Cache must be treated as read-only.
type Entry struct {
	Raw       int
	Severity  vxl.Severity
	PID       uint32
	TID       uint32
	Time      time.Time
	TimeText  string
	Line      uint32
	LineText  string
	Component uint16
	File      uint16
	Function  uint16
	Header    string
	Body      string
}

// Cache holds one slot per raw index. A nil slot has not been materialized.
type Cache struct {
	src   Source
	loc   *time.Location
	slots []*Entry
	count int
}

// New allocates an empty cache sized to src.Count(). Timestamps are
// rendered in loc, or UTC when loc is nil.
func New(src Source, loc *time.Location) *Cache {
	if loc == nil {
		loc = time.UTC
	}
	return &Cache{
		src:   src,
		loc:   loc,
		slots: make([]*Entry, src.Count()),
	}
}

// Len returns the raw entry count the cache was sized for.
func (c *Cache) Len() int { return len(c.slots) }

// Materialized returns how many slots have been decoded so far.
func (c *Cache) Materialized() int { return c.count }

// Get returns the entry at raw, decoding it on first access. A failed read
// leaves the slot empty so a later call can retry.
func (c *Cache) Get(raw int) (*Entry, error) {
	if raw < 0 || raw >= len(c.slots) {
		return nil, ErrNotFound
	}
	if e := c.slots[raw]; e != nil {
		return e, nil
	}

	rec, err := c.src.Record(raw)
	if err != nil {
		if errors.Is(err, vxl.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("entrycache: materialize %d: %w", raw, err)
	}

	e := &Entry{
		Raw:       raw,
		Severity:  rec.Severity,
		PID:       rec.PID,
		TID:       rec.TID,
		Time:      rec.Time,
		TimeText:  rec.Time.In(c.loc).Format(TimeLayout),
		Line:      rec.Line,
		LineText:  strconv.FormatUint(uint64(rec.Line), 10),
		Component: rec.Component,
		File:      rec.File,
		Function:  rec.Function,
		Header:    rec.Header,
		Body:      rec.Body,
	}
	c.slots[raw] = e
	c.count++
	return e, nil
}

// Release drops every slot. Subsequent Gets return ErrNotFound.
func (c *Cache) Release() {
	c.slots = nil
	c.count = 0
	c.src = nil
}
