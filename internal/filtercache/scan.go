package filtercache

import (
	"context"
)

// cancelCheckInterval is how many raw entries a Scan visits between
// context checks.
const cancelCheckInterval = 1024

// Scan extends an Index off the owner goroutine. It reads through its own
// Source, never touching the index's mutable state, and its result is
// applied with Commit only to the index that created it, and only if that
// index has not been invalidated since.
type Scan struct {
	owner  *Index
	gen    uint64
	from   int
	start  int
	target int
	src    Source
	match  Matcher

	// raw is the next raw index to test; it survives a cancelled Run.
	raw       int
	raws      []int
	exhausted bool
}

// NewScan prepares a scan resolving display indices up to target. src must
// read the same log as the index but must not be shared with it; a fresh
// entrycache.Cache over the same vxl.Log is the usual choice.
func (x *Index) NewScan(target int, src Source) *Scan {
	start := x.cursor()
	return &Scan{
		owner:  x,
		gen:    x.generation,
		from:   x.next,
		start:  start,
		target: target,
		src:    src,
		match:  x.match,
		raw:    start,
	}
}

// Run performs the scan. It may be called from any goroutine, but not from
// two at once. After a cancellation Run may be called again and picks up
// where it stopped.
func (s *Scan) Run(ctx context.Context) error {
	n := s.src.Len()
	for d := s.from + len(s.raws); d <= s.target && !s.exhausted; d++ {
		found := false
		for ; s.raw < n; s.raw++ {
			if (s.raw-s.start)%cancelCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			e, err := s.src.Get(s.raw)
			if err != nil {
				if skippable(err) {
					continue
				}
				return err
			}
			if s.match.Matches(e) {
				found = true
				break
			}
		}
		if !found {
			s.exhausted = true
			return nil
		}
		s.raws = append(s.raws, s.raw)
		s.raw++
	}
	return nil
}

// Commit applies a finished scan to the index. It returns ErrStale, and
// changes nothing, if the scan belongs to another index or the index was
// invalidated after NewScan.
func (x *Index) Commit(s *Scan) error {
	if s.owner != x || s.gen != x.generation {
		return ErrStale
	}
	for i, raw := range s.raws {
		d := s.from + i
		if d < x.next {
			// Resolved meanwhile by the owner; same filter, same answer.
			continue
		}
		if d >= x.estimate {
			break
		}
		x.slots[d] = slot{raw: raw, resolved: true}
		x.next = d + 1
		if raw == len(x.slots)-1 {
			x.confirm(x.next)
		}
	}
	if s.exhausted && s.from+len(s.raws) >= x.next {
		x.confirm(s.from + len(s.raws))
	}
	return nil
}
