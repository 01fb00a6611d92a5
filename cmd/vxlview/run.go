package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/tinytelemetry/vxlview/internal/duckdb"
	"github.com/tinytelemetry/vxlview/internal/export"
	"github.com/tinytelemetry/vxlview/internal/filter"
	"github.com/tinytelemetry/vxlview/internal/httpserver"
	"github.com/tinytelemetry/vxlview/internal/session"
	"github.com/tinytelemetry/vxlview/internal/tui"
	"github.com/tinytelemetry/vxlview/internal/vxl"
)

var errUsage = errors.New("expected exactly one log file")

// dispatch runs the mode selected by flags.
func dispatch(cfg appConfig, flags *pflag.FlagSet, stdout io.Writer) error {
	if list, _ := flags.GetBool("list"); list {
		return runList(cfg.LogDir, stdout)
	}

	crit, err := buildCriteria(flags, cfg.Preset, time.Now())
	if err != nil {
		return err
	}
	if path, _ := flags.GetString("save-preset"); path != "" {
		if err := filter.SavePreset(path, crit); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Saved filter preset to %s\n", path)
		return nil
	}

	if flags.NArg() != 1 {
		return errUsage
	}
	loc, err := cfg.location()
	if err != nil {
		return err
	}

	sess := session.New(session.Options{Location: loc})
	if err := sess.Open(flags.Arg(0)); err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.SetFilter(crit); err != nil {
		return fmt.Errorf("filter: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exportPath, _ := flags.GetString("export")
	dbPath, _ := flags.GetString("duckdb")
	serve, _ := flags.GetBool("serve")
	switch {
	case exportPath != "":
		return runExport(ctx, sess, exportPath, stdout)
	case dbPath != "":
		return runDuckDB(ctx, sess, dbPath, cfg, stdout)
	case serve:
		return runServe(ctx, sess, cfg.APIAddr, cfg.ExportDir, stdout)
	default:
		return runTUI(sess, cfg)
	}
}

func runExport(ctx context.Context, sess *session.Session, path string, stdout io.Writer) error {
	snap, err := sess.Snapshot()
	if err != nil {
		return err
	}
	st, err := export.ToFile(ctx, snap, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Exported %d entries (%d bytes) to %s\n", st.Entries, st.Bytes, path)
	if st.Truncated > 0 || st.Skipped > 0 {
		fmt.Fprintf(stdout, "  %d truncated, %d skipped\n", st.Truncated, st.Skipped)
	}
	return nil
}

func runDuckDB(ctx context.Context, sess *session.Session, dbPath string, cfg appConfig, stdout io.Writer) error {
	snap, err := sess.Snapshot()
	if err != nil {
		return err
	}
	store, err := duckdb.NewStore(dbPath, cfg.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()

	res, err := duckdb.ExportSession(ctx, snap, store, cfg.InsertBatchSize)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Stored export %d: %d entries in %s\n", res.ID, res.Entries, dbPath)
	if res.Dropped > 0 {
		fmt.Fprintf(stdout, "  %d entries could not be inserted, see the log\n", res.Dropped)
	}
	return nil
}

func runServe(ctx context.Context, sess *session.Session, addr, exportDir string, stdout io.Writer) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	srv := httpserver.NewServer(addr, exportDir, sess)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP API: %w", err)
	}
	log.Printf("HTTP API listening on %s for %s", srv.Addr(), sess.Path())
	fmt.Fprintf(stdout, "Serving %s on http://%s/api (Ctrl+C to stop)\n", sess.Path(), srv.Addr())

	<-ctx.Done()
	return srv.Stop()
}

func runTUI(sess *session.Session, cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	m := tui.New(sess, tui.Options{
		ExportDir:          cfg.ExportDir,
		ReverseScrollWheel: cfg.ReverseScrollWheel,
		ScanAhead:          cfg.ScanAhead,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

type logFile struct {
	name    string
	modTime time.Time
	app     string
	entries int
	err     error
}

// runList prints the .vxl files in dir, newest first.
func runList(dir string, stdout io.Writer) error {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading log directory: %w", err)
	}

	var files []logFile
	for _, de := range dirEntries {
		if de.IsDir() || !strings.EqualFold(filepath.Ext(de.Name()), ".vxl") {
			continue
		}
		f := logFile{name: de.Name()}
		if info, err := de.Info(); err == nil {
			f.modTime = info.ModTime()
		}
		if l, err := vxl.Open(filepath.Join(dir, de.Name())); err != nil {
			f.err = err
		} else {
			f.app, f.entries = l.SourceApplication(), l.Count()
			_ = l.Close()
		}
		files = append(files, f)
	}
	slices.SortFunc(files, func(a, b logFile) int { return b.modTime.Compare(a.modTime) })

	if len(files) == 0 {
		fmt.Fprintf(stdout, "No .vxl files in %s\n", dir)
		return nil
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tAPPLICATION\tENTRIES\tMODIFIED")
	for _, f := range files {
		if f.err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t%s (%v)\n", f.name, f.modTime.Format(time.DateTime), f.err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", f.name, f.app, f.entries, f.modTime.Format(time.DateTime))
	}
	return tw.Flush()
}

// configureRuntimeLogger sends the standard logger to
// ~/.local/state/vxlview/vxlview.log while a long-running mode owns the
// terminal.
func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "vxlview")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "vxlview.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		_ = f.Close()
	}
}
