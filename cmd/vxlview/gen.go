package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/spf13/pflag"

	"github.com/tinytelemetry/vxlview/internal/vxl"
)

var genHeader = vxl.Header{
	Components: []string{"KexDll", "KexSrv", "VxlView", "Loader", "Shell", "Cpiw"},
	Files:      []string{"dllmain.c", "ntdll.c", "kernel32.c", "vxlview.c", "loader.c", "shell.c"},
	Functions:  []string{"DllMain", "KexInitialize", "LdrLoadDll", "CreateFileW", "OpenLogFile", "ShellExecuteEx"},
}

var genHeaders = []string{
	"Loaded %s",
	"Redirected %s to the extended version",
	"Failed to open %s",
	"Thread attached to %s",
	"Resolved import from %s",
	"Access denied while reading %s",
}

var genTargets = []string{
	`C:\Windows\system32\kernel32.dll`,
	`C:\Windows\system32\ntdll.dll`,
	`C:\Program Files\App\app.exe`,
	`\\?\C:\Users\me\AppData\Local\Temp\x.tmp`,
	"HKLM\\Software\\VxKex",
}

// runGen writes a synthetic log, mostly for demos.
func runGen(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("gen", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	count := fs.Int("count", 1000, "number of entries")
	app := fs.String("app", "notepad.exe", "source application name")
	seed := fs.Uint64("seed", 1, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("gen: expected exactly one output path")
	}
	if *count <= 0 {
		return fmt.Errorf("gen: invalid count %d", *count)
	}

	h := genHeader
	h.SourceApplication = *app
	w, err := vxl.Create(fs.Arg(0), h)
	if err != nil {
		return err
	}

	r := rand.New(rand.NewPCG(*seed, *seed))
	t := time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC)
	for i := 0; i < *count; i++ {
		rec := genRecord(r, i, t)
		t = rec.Time
		if err := w.Append(rec); err != nil {
			return fmt.Errorf("gen: entry %d: %w", i, err)
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %d entries to %s\n", *count, fs.Arg(0))
	return nil
}

func genRecord(r *rand.Rand, i int, prev time.Time) vxl.Record {
	// Mostly detail and info, with the occasional error.
	var sev vxl.Severity
	switch n := r.IntN(100); {
	case n < 2:
		sev = vxl.SeverityCritical
	case n < 8:
		sev = vxl.SeverityError
	case n < 20:
		sev = vxl.SeverityWarning
	case n < 50:
		sev = vxl.SeverityInformation
	case n < 85:
		sev = vxl.SeverityDetail
	default:
		sev = vxl.SeverityDebug
	}

	c := uint16(r.IntN(len(genHeader.Components)))
	rec := vxl.Record{
		Severity:  sev,
		Component: c,
		File:      c,
		Function:  uint16(r.IntN(len(genHeader.Functions))),
		Line:      uint32(10 + r.IntN(2000)),
		PID:       0x1a4,
		TID:       uint32(0x100 + r.IntN(6)*4),
		Time:      prev.Add(time.Duration(r.IntN(250)) * time.Millisecond),
		Header:    fmt.Sprintf(genHeaders[r.IntN(len(genHeaders))], genTargets[r.IntN(len(genTargets))]),
	}
	if sev <= vxl.SeverityWarning || i%7 == 0 {
		rec.Body = fmt.Sprintf("entry %d\r\nstatus 0x%08X", i, r.Uint32())
	}
	return rec
}
