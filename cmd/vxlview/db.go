package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/tinytelemetry/vxlview/internal/duckdb"
	"github.com/tinytelemetry/vxlview/internal/vxl"
)

// runDB inspects a database written by --duckdb: it lists the stored
// exports, runs a read-only query, or deletes an export.
func runDB(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("db", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	query := fs.String("sql", "", "run a read-only SELECT against the database")
	del := fs.Int64("delete", 0, "delete the export with this id")
	timeout := fs.Duration("query-timeout", defaultQueryTimeout, "statement timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("db: expected exactly one database path")
	}

	store, err := duckdb.NewStore(fs.Arg(0), *timeout)
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()

	switch {
	case *query != "":
		return printQuery(store, *query, stdout)
	case *del != 0:
		if err := store.DeleteExport(*del); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Deleted export %d\n", *del)
		return nil
	default:
		return printExports(store, stdout)
	}
}

func printExports(store *duckdb.Store, stdout io.Writer) error {
	exports, err := store.Exports()
	if err != nil {
		return err
	}
	counts, err := store.TableRowCounts()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d exports, %d entries\n\n", store.Path(), counts["exports"], counts["entries"])
	if len(exports) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAPPLICATION\tENTRIES\tSTARTED\tSEVERITIES\tSOURCE")
	for _, e := range exports {
		entries := "incomplete"
		if e.Entries >= 0 {
			entries = fmt.Sprint(e.Entries)
		}
		sevs, err := store.SeverityCounts(e.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.SourceApp, entries,
			e.StartedAt.Local().Format(time.DateTime), formatSeverityCounts(sevs), e.SourcePath)
	}
	return tw.Flush()
}

// formatSeverityCounts lists counts most severe first, e.g. "ERROR=2 INFO=7".
func formatSeverityCounts(counts map[string]int64) string {
	var parts []string
	for i := 0; i < vxl.NumSeverities; i++ {
		name := vxl.Severity(i).String()
		if n := counts[name]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", name, n))
		}
	}
	return strings.Join(parts, " ")
}

func printQuery(store *duckdb.Store, query string, stdout io.Writer) error {
	rows, err := store.ExecuteQuery(query)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "(no rows)")
		return nil
	}

	var cols []string
	for col := range rows[0] {
		cols = append(cols, col)
	}
	slices.Sort(cols)

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, row := range rows {
		vals := make([]string, len(cols))
		for i, col := range cols {
			vals[i] = fmt.Sprint(row[col])
		}
		fmt.Fprintln(tw, strings.Join(vals, "\t"))
	}
	return tw.Flush()
}
