package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/tinytelemetry/vxlview/internal/filter"
	"github.com/tinytelemetry/vxlview/internal/logparse"
	"github.com/tinytelemetry/vxlview/internal/timestamp"
)

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("vxlview", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	fs.String("config", "", "config file (default is $HOME/.config/vxlview/config.yml)")
	fs.Bool("version", false, "print version information")
	fs.Bool("list", false, "list the .vxl files in the log directory and exit")
	fs.String("export", "", "write the filtered view as text to `PATH` and exit (.zst compresses)")
	fs.String("duckdb", "", "store the filtered view in the DuckDB database at `PATH` and exit")
	fs.Bool("serve", false, "serve the HTTP API instead of the terminal viewer")
	fs.String("api-addr", defaultAPIAddr, "listen `ADDR` for --serve")

	fs.String("log-dir", "", "directory searched by --list")
	fs.String("export-dir", "", "directory for exports started from the viewer")
	fs.String("timezone", "", "zone for displayed times: Local, UTC or an IANA name")
	fs.Bool("reverse-scroll-wheel", false, "reverse the mouse wheel direction")

	fs.StringSlice("component", nil, "show only these components")
	fs.StringSlice("file", nil, "show only these source files")
	fs.StringSlice("function", nil, "show only these functions")
	fs.String("severity", "", "comma separated severities to show, e.g. error,warn")
	fs.String("text", "", "show entries whose header or body contains `TEXT`")
	fs.Bool("case-sensitive", false, "match --text case sensitively")
	fs.String("since", "", "show entries at or after `TIME` (absolute, or relative such as -2h)")
	fs.String("until", "", "show entries before `TIME`")
	fs.Uint32("pid", 0, "show only this process id")
	fs.Uint32("tid", 0, "show only this thread id")
	fs.String("expr", "", "CEL expression entries must satisfy, e.g. \"line > 100 && component == 'Loader'\"")
	fs.String("preset", "", "load filter criteria from a YAML preset; flags override it")
	fs.String("save-preset", "", "write the resulting filter to a YAML preset at `PATH` and exit")
	return fs
}

func usage(fs *pflag.FlagSet) string {
	var b strings.Builder
	b.WriteString("Usage:\n")
	b.WriteString("  vxlview [flags] FILE.vxl\n")
	b.WriteString("  vxlview --list\n")
	b.WriteString("  vxlview gen [--count N] [--app NAME] [--seed N] FILE.vxl\n")
	b.WriteString("  vxlview db [--sql QUERY | --delete ID] FILE.duckdb\n\n")
	b.WriteString("Flags:\n")
	b.WriteString(fs.FlagUsages())
	return b.String()
}

// buildCriteria starts from the preset, if any, and applies every filter flag
// that was set on the command line.
func buildCriteria(fs *pflag.FlagSet, preset string, now time.Time) (filter.Criteria, error) {
	var c filter.Criteria
	if preset != "" {
		var err error
		if c, err = filter.LoadPreset(preset); err != nil {
			return c, err
		}
	}

	if fs.Changed("component") {
		c.Components, _ = fs.GetStringSlice("component")
	}
	if fs.Changed("file") {
		c.Files, _ = fs.GetStringSlice("file")
	}
	if fs.Changed("function") {
		c.Functions, _ = fs.GetStringSlice("function")
	}
	if fs.Changed("severity") {
		s, _ := fs.GetString("severity")
		sevs, err := logparse.ParseSeverityList(s)
		if err != nil {
			return c, fmt.Errorf("--severity: %w", err)
		}
		c.Severities = c.Severities[:0]
		for _, sev := range sevs {
			c.Severities = append(c.Severities, sev.String())
		}
	}
	if fs.Changed("text") {
		c.Text, _ = fs.GetString("text")
	}
	if fs.Changed("case-sensitive") {
		c.CaseSensitive, _ = fs.GetBool("case-sensitive")
	}
	for _, b := range []struct {
		name string
		dst  *time.Time
	}{{"since", &c.Since}, {"until", &c.Until}} {
		if !fs.Changed(b.name) {
			continue
		}
		s, _ := fs.GetString(b.name)
		t, err := timestamp.ParseBound(s, now)
		if err != nil {
			return c, fmt.Errorf("--%s: %w", b.name, err)
		}
		*b.dst = t
	}
	if fs.Changed("pid") {
		c.PID, _ = fs.GetUint32("pid")
	}
	if fs.Changed("tid") {
		c.TID, _ = fs.GetUint32("tid")
	}
	if fs.Changed("expr") {
		c.Expr, _ = fs.GetString("expr")
	}
	return c, nil
}
