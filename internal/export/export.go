// Package export writes the filtered view of a log to a file.
//
// An export never touches the viewer's caches. It reopens the log named by a
// session.Snapshot and rebuilds its own entry cache and index, so it can run
// on any goroutine while the viewer keeps working.
package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/vxlview/internal/entrycache"
	"github.com/tinytelemetry/vxlview/internal/filter"
	"github.com/tinytelemetry/vxlview/internal/filtercache"
	"github.com/tinytelemetry/vxlview/internal/render"
	"github.com/tinytelemetry/vxlview/internal/session"
	"github.com/tinytelemetry/vxlview/internal/vxl"
)

// FallbackFileName is used when the log names no source application.
const FallbackFileName = "Exported Log.txt"

// Stats summarises a finished export.
type Stats struct {
	Entries   int
	Truncated int
	Skipped   int
	Bytes     int64
}

// DefaultFileName suggests a file name for exporting a log written by app.
func DefaultFileName(app string) string {
	app = strings.TrimSpace(app)
	if app == "" {
		return FallbackFileName
	}
	name := strings.Map(func(r rune) rune {
		if r < 0x20 || strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, app)
	return fmt.Sprintf("Exported log from %s.txt", name)
}

// Each walks the filtered view of snap in display order on a private handle
// and calls fn for every entry. names resolves interned strings of the log.
// It returns how many unreadable entries the walk stepped over.
func Each(ctx context.Context, snap session.Snapshot, fn func(e *entrycache.Entry, names render.Names) error) (int, error) {
	l, err := vxl.Open(snap.Path)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	defer l.Close()

	pred, err := filter.Compile(snap.Criteria, l)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	entries := entrycache.New(l, snap.Location)
	defer entries.Release()
	index := filtercache.New(entries, pred)

	for d := 0; ; d++ {
		if err := ctx.Err(); err != nil {
			return index.Skipped(), err
		}
		raw, err := index.Resolve(d)
		if errors.Is(err, filtercache.ErrNotFound) {
			return index.Skipped(), nil
		}
		if err != nil {
			return index.Skipped(), fmt.Errorf("export: entry %d: %w", d, err)
		}
		e, err := entries.Get(raw)
		if err != nil {
			return index.Skipped(), fmt.Errorf("export: entry %d: %w", d, err)
		}
		if err := fn(e, l); err != nil {
			return index.Skipped(), err
		}
	}
}

// Text writes the long form of every entry in the filtered view of snap to
// w, each followed by a blank line. Entries that cannot be read or formatted
// are skipped, logged and counted; truncated ones are written as rendered.
func Text(ctx context.Context, snap session.Snapshot, w io.Writer) (Stats, error) {
	var st Stats
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	unreadable, err := Each(ctx, snap, func(e *entrycache.Entry, names render.Names) error {
		text, err := render.Render(e, names, true)
		switch {
		case errors.Is(err, render.ErrTruncated):
			st.Truncated++
		case err != nil:
			log.Printf("export: skipping entry %d: %v", e.Raw, err)
			st.Skipped++
			return nil
		}
		if _, err := bw.WriteString(text); err != nil {
			return err
		}
		if _, err := bw.WriteString("\r\n"); err != nil {
			return err
		}
		st.Entries++
		return nil
	})
	st.Skipped += unreadable
	if ferr := bw.Flush(); err == nil {
		err = ferr
	}
	st.Bytes = cw.n
	return st, err
}

// ToFile exports snap to path. The file only appears once the export has
// finished; a failed or cancelled export leaves any existing file alone.
// Paths ending in .zst are zstd-compressed.
func ToFile(ctx context.Context, snap session.Snapshot, path string) (Stats, error) {
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	var st Stats
	g.Go(func() error {
		var (
			w   io.Writer = pw
			enc *zstd.Encoder
			err error
		)
		if strings.HasSuffix(strings.ToLower(path), ".zst") {
			enc, err = zstd.NewWriter(pw)
			if err != nil {
				pw.CloseWithError(err)
				return err
			}
			w = enc
		}
		st, err = Text(gctx, snap, w)
		if enc != nil {
			if cerr := enc.Close(); err == nil {
				err = cerr
			}
		}
		pw.CloseWithError(err)
		return err
	})
	g.Go(func() error {
		err := atomic.WriteFile(path, pr)
		pr.CloseWithError(err)
		return err
	})

	if err := g.Wait(); err != nil {
		return st, fmt.Errorf("export: %s: %w", path, err)
	}
	log.Printf("export: wrote %d entries to %s (%d truncated, %d skipped)", st.Entries, path, st.Truncated, st.Skipped)
	return st, nil
}

// Job is an export running in the background.
type Job struct {
	Path string

	cancel context.CancelFunc
	done   chan struct{}
	stats  Stats
	err    error
}

// Start runs ToFile on its own goroutine.
func Start(ctx context.Context, snap session.Snapshot, path string) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{Path: path, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer cancel()
		j.stats, j.err = ToFile(ctx, snap, path)
		close(j.done)
	}()
	return j
}

// Done is closed when the export finishes.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel asks the export to stop. Wait still has to be called for the result.
func (j *Job) Cancel() { j.cancel() }

// Wait blocks until the export finishes.
func (j *Job) Wait() (Stats, error) {
	<-j.done
	return j.stats, j.err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
