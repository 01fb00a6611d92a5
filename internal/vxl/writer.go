package vxl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/natefinch/atomic"
)

// Writer builds a VXL log in memory and writes it to disk on Close.
// The offset table precedes the records, so nothing is written until the
// final entry count is known.
type Writer struct {
	path    string
	header  Header
	records bytes.Buffer
	sizes   []int
	closed  bool
}

// Create starts a new log at path with the given header.
func Create(path string, h Header) (*Writer, error) {
	if !validString(h.SourceApplication) {
		return nil, errors.New("vxl: invalid source application name")
	}
	for _, table := range [][]string{h.Components, h.Files, h.Functions} {
		if len(table) > math.MaxUint16 {
			return nil, errors.New("vxl: string table too large")
		}
		for _, s := range table {
			if !validString(s) {
				return nil, fmt.Errorf("vxl: invalid table string %q", s)
			}
		}
	}
	return &Writer{path: path, header: h}, nil
}

// Append encodes rec after validating its table references.
func (w *Writer) Append(rec Record) error {
	if w.closed {
		return errors.New("vxl: writer closed")
	}
	if !rec.Severity.Valid() {
		return fmt.Errorf("vxl: invalid severity %d", rec.Severity)
	}
	if int(rec.Component) >= len(w.header.Components) ||
		int(rec.File) >= len(w.header.Files) ||
		int(rec.Function) >= len(w.header.Functions) {
		return errors.New("vxl: record references a missing table entry")
	}
	if len(rec.Header) > maxString {
		return errors.New("vxl: header text too long")
	}
	if len(rec.Body) > maxBody {
		return errors.New("vxl: body text too long")
	}
	if len(w.sizes) == math.MaxUint32 {
		return errors.New("vxl: too many entries")
	}

	start := w.records.Len()
	var fixed [fixedRecordSize]byte
	fixed[0] = byte(rec.Severity)
	binary.LittleEndian.PutUint16(fixed[1:], rec.Component)
	binary.LittleEndian.PutUint16(fixed[3:], rec.File)
	binary.LittleEndian.PutUint16(fixed[5:], rec.Function)
	binary.LittleEndian.PutUint32(fixed[7:], rec.Line)
	binary.LittleEndian.PutUint32(fixed[11:], rec.PID)
	binary.LittleEndian.PutUint32(fixed[15:], rec.TID)
	binary.LittleEndian.PutUint64(fixed[19:], uint64(rec.Time.UnixNano()))
	w.records.Write(fixed[:])
	putString(&w.records, rec.Header)
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(rec.Body)))
	w.records.Write(n[:])
	w.records.WriteString(rec.Body)

	w.sizes = append(w.sizes, w.records.Len()-start)
	return nil
}

// Close writes the complete log atomically.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var head bytes.Buffer
	head.WriteString(magic)
	putU16(&head, version)
	putU16(&head, 0)
	putString(&head, w.header.SourceApplication)
	for _, table := range [][]string{w.header.Components, w.header.Files, w.header.Functions} {
		putU16(&head, uint16(len(table)))
		for _, s := range table {
			putString(&head, s)
		}
	}
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(w.sizes)))
	head.Write(n[:])

	off := uint64(head.Len() + 8*len(w.sizes))
	var b [8]byte
	for _, size := range w.sizes {
		binary.LittleEndian.PutUint64(b[:], off)
		head.Write(b[:])
		off += uint64(size)
	}
	head.Write(w.records.Bytes())

	if err := atomic.WriteFile(w.path, &head); err != nil {
		return fmt.Errorf("vxl: write %s: %w", w.path, err)
	}
	return nil
}

func putU16(b *bytes.Buffer, v uint16) {
	var p [2]byte
	binary.LittleEndian.PutUint16(p[:], v)
	b.Write(p[:])
}

func putString(b *bytes.Buffer, s string) {
	putU16(b, uint16(len(s)))
	b.WriteString(s)
}
