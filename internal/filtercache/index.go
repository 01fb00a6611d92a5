// Package filtercache maps display indices (the Nth entry passing the
// current filter) to raw indices in the open log.
//
// The map is filled lazily, left to right, as higher display indices are
// requested. The scan cursor only moves forward, so the total predicate work
// for one filter is bounded by the raw entry count whatever the access order.
// A single cold request for a far display index may still scan the whole log;
// interactive callers should bound how far ahead they ask per tick, or hand
// the work to a Scan.
package filtercache

import (
	"errors"
	"log"

	"github.com/tinytelemetry/vxlview/internal/entrycache"
	"github.com/tinytelemetry/vxlview/internal/vxl"
)

var (
	// ErrNotFound means there is no entry at the requested position under the
	// current filter.
	ErrNotFound = errors.New("filtercache: not found")
	// ErrStale is returned by Commit when the index was invalidated after the
	// scan was started.
	ErrStale = errors.New("filtercache: stale scan")
)

// Source yields materialized entries by raw index. *entrycache.Cache
// satisfies it.
type Source interface {
	Len() int
	Get(raw int) (*entrycache.Entry, error)
}

// Matcher is the filter predicate. It must be pure.
type Matcher interface {
	Matches(e *entrycache.Entry) bool
}

// slot is one display position: either unresolved or a final raw index.
type slot struct {
	raw      int
	resolved bool
}

// Index is the filtered-index cache for one open log. It is not safe for
// concurrent use.
type Index struct {
	src   Source
	match Matcher

	// slots has one entry per raw index, the upper bound of any filtered
	// count. Only slots[:next] are resolved.
	slots []slot
	next  int

	// estimate is the current item count reported to callers. It starts at
	// len(slots) and shrinks once, when a scan reaches the end of the log.
	estimate  int
	confirmed bool

	generation uint64
	scanned    int
	skipped    int

	// OnCountChanged, when set, is called with the new count whenever a scan
	// discovers the filtered count is lower than the current estimate.
	OnCountChanged func(count int)
}

// New returns an index over src filtered by match, with every slot
// unresolved.
func New(src Source, match Matcher) *Index {
	n := src.Len()
	return &Index{
		src:       src,
		match:     match,
		slots:     make([]slot, n),
		estimate:  n,
		confirmed: n == 0,
	}
}

// Estimate returns the current best estimate of the filtered count. Once
// Confirmed reports true it is exact.
func (x *Index) Estimate() int { return x.estimate }

// Confirmed reports whether the filtered count is known exactly.
func (x *Index) Confirmed() bool { return x.confirmed }

// Resolved returns how many display indices have been resolved.
func (x *Index) Resolved() int { return x.next }

// Generation is incremented by every Invalidate.
func (x *Index) Generation() uint64 { return x.generation }

// Scanned returns the number of predicate evaluations performed so far.
func (x *Index) Scanned() int { return x.scanned }

// Skipped returns how many unreadable entries the index has stepped over
// since the last Invalidate.
func (x *Index) Skipped() int { return x.skipped }

// Resolve returns the raw index of the entry at display position display,
// extending the map as needed.
func (x *Index) Resolve(display int) (int, error) {
	if display < 0 || display >= x.estimate {
		return -1, ErrNotFound
	}
	if display < x.next {
		return x.slots[display].raw, nil
	}

	for x.next <= display {
		raw, found, err := x.scan(x.cursor())
		if err != nil {
			return -1, err
		}
		if !found {
			x.confirm(x.next)
			return -1, ErrNotFound
		}
		x.slots[x.next] = slot{raw: raw, resolved: true}
		x.next++
		if raw == len(x.slots)-1 {
			// Nothing is left to scan: the count is exact.
			x.confirm(x.next)
		}
	}
	return x.slots[display].raw, nil
}

// Lookup returns the raw index at display if it is already resolved. It
// never scans.
func (x *Index) Lookup(display int) (int, bool) {
	if display < 0 || display >= x.estimate {
		return -1, false
	}
	s := x.slots[display]
	return s.raw, s.resolved
}

// ReverseResolve returns the display index of raw under the current filter.
// It walks Resolve from display 0, so the worst case over a cold index is
// quadratic in the log size; it exists for infrequent "go to entry" requests.
func (x *Index) ReverseResolve(raw int) (int, error) {
	if raw < 0 || raw >= len(x.slots) {
		return -1, ErrNotFound
	}
	for d := 0; ; d++ {
		r, err := x.Resolve(d)
		if err != nil {
			return -1, err
		}
		if r == raw {
			return d, nil
		}
		if r > raw {
			// The map is strictly increasing, so raw was filtered out.
			return -1, ErrNotFound
		}
	}
}

// Invalidate forgets every resolved slot and resets the estimate to the raw
// count. Scans started before the call can no longer be committed.
func (x *Index) Invalidate() {
	clear(x.slots[:x.next])
	x.next = 0
	x.estimate = len(x.slots)
	x.confirmed = len(x.slots) == 0
	x.skipped = 0
	x.generation++
}

// SetMatcher replaces the predicate and invalidates the index.
func (x *Index) SetMatcher(m Matcher) {
	x.match = m
	x.Invalidate()
}

// cursor is the first raw index not yet covered by the resolved prefix.
func (x *Index) cursor() int {
	if x.next == 0 {
		return 0
	}
	return x.slots[x.next-1].raw + 1
}

func (x *Index) scan(start int) (raw int, found bool, err error) {
	for raw = start; raw < len(x.slots); raw++ {
		e, err := x.src.Get(raw)
		if err != nil {
			if skippable(err) {
				log.Printf("filtercache: skipping unreadable entry %d: %v", raw, err)
				x.skipped++
				continue
			}
			return -1, false, err
		}
		x.scanned++
		if x.match.Matches(e) {
			return raw, true, nil
		}
	}
	return -1, false, nil
}

// confirm records that exactly count entries pass the filter.
func (x *Index) confirm(count int) {
	if x.confirmed && count >= x.estimate {
		return
	}
	shrunk := count < x.estimate
	x.estimate = count
	x.confirmed = true
	if shrunk && x.OnCountChanged != nil {
		x.OnCountChanged(count)
	}
}

// skippable reports whether a materialization error concerns only the one
// entry, so the scan may move past it.
func skippable(err error) bool {
	return errors.Is(err, vxl.ErrCorrupt)
}
