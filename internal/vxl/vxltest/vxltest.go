// Package vxltest builds small VXL logs for tests.
package vxltest

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/tinytelemetry/vxlview/internal/vxl"
)

// Base is the timestamp of the first generated entry.
var Base = time.Date(2024, 3, 9, 14, 5, 7, 250_000_000, time.UTC)

// Header is the header used by Write and Entries.
var Header = vxl.Header{
	SourceApplication: "notepad.exe",
	Components:        []string{"KexDll", "VxlView", "Loader"},
	Files:             []string{"main.c", "backend.c", "dllinit.c"},
	Functions:         []string{"main", "OpenLogFile", "DllMain"},
}

// Entries generates n records. Entry i has severity i%6, component i%3,
// header "entry <i>" and a body only for even i.
func Entries(n int) []vxl.Record {
	recs := make([]vxl.Record, n)
	for i := range recs {
		recs[i] = vxl.Record{
			Severity:  vxl.Severity(i % vxl.NumSeverities),
			Component: uint16(i % 3),
			File:      uint16(i % 3),
			Function:  uint16(i % 3),
			Line:      uint32(100 + i),
			PID:       0x1a4,
			TID:       uint32(0x10 + i%4),
			Time:      Base.Add(time.Duration(i) * time.Second),
			Header:    fmt.Sprintf("entry %d", i),
		}
		if i%2 == 0 {
			recs[i].Body = fmt.Sprintf("body of entry %d", i)
		}
	}
	return recs
}

// Write writes recs under a fresh temp dir and returns the path.
func Write(t testing.TB, recs []vxl.Record) string {
	t.Helper()
	return WriteHeader(t, Header, recs)
}

// WriteHeader is Write with a custom header.
func WriteHeader(t testing.TB, h vxl.Header, recs []vxl.Record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.vxl")
	w, err := vxl.Create(path, h)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i, r := range recs {
		if err := w.Append(r); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

// Open writes recs and opens the result, closing it on cleanup.
func Open(t testing.TB, recs []vxl.Record) *vxl.Log {
	t.Helper()
	l, err := vxl.Open(Write(t, recs))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}
