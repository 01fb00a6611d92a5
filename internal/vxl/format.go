// Package vxl reads and writes VXL binary event logs.
//
// A VXL file starts with a header carrying the source application name and
// three interned string tables (components, files, functions). The header is
// followed by an offset table and the entry records themselves, so any entry
// can be read by raw index without scanning its predecessors.
package vxl

import (
	"errors"
	"strings"
	"time"
)

const (
	magic   = "VXLL"
	version = 1

	// fixedRecordSize covers severity, the three interned indices, line,
	// pid, tid and timestamp.
	fixedRecordSize = 1 + 2 + 2 + 2 + 4 + 4 + 4 + 8

	maxString = 1<<16 - 1
	maxBody   = 16 << 20
)

var (
	// ErrNotFound is returned for raw indices outside [0, Count) and for
	// reads against a closed log.
	ErrNotFound = errors.New("vxl: entry not found")
	// ErrBadMagic means the file is not a VXL log.
	ErrBadMagic = errors.New("vxl: not a vxl log")
	// ErrCorrupt means the file structure is inconsistent.
	ErrCorrupt = errors.New("vxl: corrupt log")
)

// Severity is the importance level of an entry.
type Severity uint8

const (
	SeverityCritical Severity = iota
	SeverityError
	SeverityWarning
	SeverityInformation
	SeverityDetail
	SeverityDebug

	NumSeverities = int(SeverityDebug) + 1
)

var severityNames = [NumSeverities]string{
	"CRITICAL",
	"ERROR",
	"WARNING",
	"INFO",
	"DETAIL",
	"DEBUG",
}

func (s Severity) String() string {
	if int(s) < NumSeverities {
		return severityNames[s]
	}
	return "UNKNOWN"
}

// Valid reports whether s is one of the defined severities.
func (s Severity) Valid() bool { return int(s) < NumSeverities }

// Header is the file-level metadata of a log.
type Header struct {
	SourceApplication string
	Components        []string
	Files             []string
	Functions         []string
}

// Record is one raw entry as stored on disk. Component, File and Function
// index into the matching Header tables.
type Record struct {
	Severity  Severity
	Component uint16
	File      uint16
	Function  uint16
	Line      uint32
	PID       uint32
	TID       uint32
	Time      time.Time
	Header    string
	Body      string
}

func lookup(table []string, i uint16) string {
	if int(i) < len(table) {
		return table[i]
	}
	return "?"
}

func validString(s string) bool {
	return len(s) <= maxString && !strings.ContainsRune(s, 0)
}
