package vxl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Log is an open, read-only VXL file. Record is safe for concurrent use;
// Close must not race with other calls on the same Log.
type Log struct {
	mu      sync.RWMutex
	path    string
	f       *os.File
	size    int64
	header  Header
	offsets []uint64
}

// Open opens the log at path and reads its header and offset table.
func Open(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vxl: open: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("vxl: stat: %w", err)
	}

	l := &Log{path: path, f: f, size: st.Size()}
	if err := l.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) readHeader() error {
	r := newDecoder(bufio.NewReader(io.NewSectionReader(l.f, 0, l.size)))

	var m [4]byte
	r.bytes(m[:])
	if r.err != nil || string(m[:]) != magic {
		return ErrBadMagic
	}
	if v := r.u16(); r.err == nil && v != version {
		return fmt.Errorf("vxl: unsupported version %d", v)
	}
	r.u16() // flags

	l.header.SourceApplication = r.str()
	l.header.Components = r.table()
	l.header.Files = r.table()
	l.header.Functions = r.table()

	count := r.u32()
	if r.err != nil {
		return fmt.Errorf("%w: header: %v", ErrCorrupt, r.err)
	}
	// Each offset needs 8 bytes and each record at least fixedRecordSize.
	if int64(count)*(8+fixedRecordSize) > l.size {
		return fmt.Errorf("%w: entry count %d exceeds file size", ErrCorrupt, count)
	}

	l.offsets = make([]uint64, count)
	for i := range l.offsets {
		l.offsets[i] = r.u64()
	}
	if r.err != nil {
		return fmt.Errorf("%w: offset table: %v", ErrCorrupt, r.err)
	}
	for i, off := range l.offsets {
		if off+fixedRecordSize > uint64(l.size) {
			return fmt.Errorf("%w: entry %d offset %d out of range", ErrCorrupt, i, off)
		}
	}
	return nil
}

// Path returns the file path the log was opened from.
func (l *Log) Path() string { return l.path }

// Count returns the number of entries in the log.
func (l *Log) Count() int { return len(l.offsets) }

// SourceApplication returns the name of the application that wrote the log.
func (l *Log) SourceApplication() string { return l.header.SourceApplication }

// Component returns the interned component name at i, or "?".
func (l *Log) Component(i uint16) string { return lookup(l.header.Components, i) }

// File returns the interned source file name at i, or "?".
func (l *Log) File(i uint16) string { return lookup(l.header.Files, i) }

// Function returns the interned function name at i, or "?".
func (l *Log) Function(i uint16) string { return lookup(l.header.Functions, i) }

// Components returns a copy of the component table.
func (l *Log) Components() []string {
	return append([]string(nil), l.header.Components...)
}

// Record reads the entry at raw index raw.
func (l *Log) Record(raw int) (Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.f == nil || raw < 0 || raw >= len(l.offsets) {
		return Record{}, ErrNotFound
	}
	off := int64(l.offsets[raw])
	r := newDecoder(bufio.NewReaderSize(io.NewSectionReader(l.f, off, l.size-off), 512))

	var rec Record
	rec.Severity = Severity(r.u8())
	rec.Component = r.u16()
	rec.File = r.u16()
	rec.Function = r.u16()
	rec.Line = r.u32()
	rec.PID = r.u32()
	rec.TID = r.u32()
	rec.Time = time.Unix(0, int64(r.u64())).UTC()
	rec.Header = r.str()
	rec.Body = r.body()
	if r.err != nil {
		return Record{}, fmt.Errorf("%w: entry %d: %v", ErrCorrupt, raw, r.err)
	}
	return rec, nil
}

// Close releases the file handle. Further reads return ErrNotFound.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// decoder reads little-endian fields and latches the first error.
type decoder struct {
	r   *bufio.Reader
	buf [8]byte
	err error
}

func newDecoder(r *bufio.Reader) *decoder { return &decoder{r: r} }

func (d *decoder) bytes(p []byte) {
	if d.err != nil {
		return
	}
	_, d.err = io.ReadFull(d.r, p)
}

func (d *decoder) u8() uint8 {
	d.bytes(d.buf[:1])
	return d.buf[0]
}

func (d *decoder) u16() uint16 {
	d.bytes(d.buf[:2])
	if d.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint16(d.buf[:2])
}

func (d *decoder) u32() uint32 {
	d.bytes(d.buf[:4])
	if d.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(d.buf[:4])
}

func (d *decoder) u64() uint64 {
	d.bytes(d.buf[:8])
	if d.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(d.buf[:8])
}

func (d *decoder) str() string {
	n := d.u16()
	if d.err != nil || n == 0 {
		return ""
	}
	p := make([]byte, n)
	d.bytes(p)
	return string(p)
}

func (d *decoder) body() string {
	n := d.u32()
	if d.err != nil || n == 0 {
		return ""
	}
	if n > maxBody {
		d.err = fmt.Errorf("body length %d too large", n)
		return ""
	}
	p := make([]byte, n)
	d.bytes(p)
	return string(p)
}

func (d *decoder) table() []string {
	n := d.u16()
	if d.err != nil {
		return nil
	}
	out := make([]string, 0, n)
	for i := 0; i < int(n) && d.err == nil; i++ {
		out = append(out, d.str())
	}
	return out
}
