package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tinytelemetry/vxlview/internal/filter"
	"github.com/tinytelemetry/vxlview/internal/vxl"
	"github.com/tinytelemetry/vxlview/internal/vxl/vxltest"
)

// isolate points HOME and the state directory at temp dirs so no real config
// file is read.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	return home
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	isolate(t)

	code, out, _ := runCLI(t, "--version")
	if code != 0 || !strings.Contains(out, "Version:    dev") {
		t.Errorf("code = %d out = %q", code, out)
	}
}

func TestUsageErrors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no file", nil, 2},
		{"two files", []string{"a.vxl", "b.vxl"}, 2},
		{"unknown flag", []string{"--nope"}, 2},
		{"help", []string{"--help"}, 0},
		{"missing file", []string{"does-not-exist.vxl"}, 1},
		{"bad severity", []string{"--severity", "loud", "x.vxl"}, 1},
		{"bad since", []string{"--since", "yesterday-ish", "x.vxl"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, errOut := runCLI(t, tt.args...); code != tt.code {
				t.Errorf("code = %d, want %d (stderr %q)", code, tt.code, errOut)
			}
		})
	}
}

func TestExportWithPresetAndFlags(t *testing.T) {
	home := isolate(t)
	logPath := vxltest.Write(t, vxltest.Entries(12))

	preset := filepath.Join(home, "view.yml")
	if err := filter.SavePreset(preset, filter.Criteria{Components: []string{"VxlView"}}); err != nil {
		t.Fatalf("SavePreset: %v", err)
	}
	out := filepath.Join(home, "out.txt")

	code, stdout, stderr := runCLI(t, "--preset", preset, "--severity", "err", "--export", out, logPath)
	if code != 0 {
		t.Fatalf("code = %d stderr = %q", code, stderr)
	}
	if !strings.Contains(stdout, "Exported 2 entries") {
		t.Errorf("stdout = %q", stdout)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// VxlView entries are 1, 4, 7 and 10; of those 1 and 7 are errors.
	for _, want := range []string{"entry 1\r\n", "entry 7\r\n"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("export lacks %q", want)
		}
	}
	if n := strings.Count(string(data), "Date/Time: "); n != 2 {
		t.Errorf("export has %d entries, want 2", n)
	}
}

func TestInvalidExpression(t *testing.T) {
	isolate(t)
	logPath := vxltest.Write(t, vxltest.Entries(3))

	code, _, stderr := runCLI(t, "--expr", "line +", "--export", filepath.Join(t.TempDir(), "x.txt"), logPath)
	if code != 1 || !strings.Contains(stderr, "filter") {
		t.Errorf("code = %d stderr = %q", code, stderr)
	}
}

func TestSavePreset(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "preset.yml")

	code, _, stderr := runCLI(t, "--save-preset", path, "--component", "Loader,KexDll", "--text", "denied", "--case-sensitive", "--pid", "420")
	if code != 0 {
		t.Fatalf("code = %d stderr = %q", code, stderr)
	}
	got, err := filter.LoadPreset(path)
	if err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}
	want := filter.Criteria{
		Components:    []string{"Loader", "KexDll"},
		Text:          "denied",
		CaseSensitive: true,
		PID:           420,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("preset (-want +got):\n%s", diff)
	}
}

func TestGenThenExport(t *testing.T) {
	home := isolate(t)
	logPath := filepath.Join(home, "gen.vxl")

	code, _, stderr := runCLI(t, "gen", "--count", "300", "--seed", "7", logPath)
	if code != 0 {
		t.Fatalf("gen code = %d stderr = %q", code, stderr)
	}

	l, err := vxl.Open(logPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if l.Count() != 300 || l.SourceApplication() != "notepad.exe" {
		t.Errorf("count = %d app = %q", l.Count(), l.SourceApplication())
	}
	errors := 0
	for i := 0; i < l.Count(); i++ {
		rec, err := l.Record(i)
		if err != nil {
			t.Fatalf("Record(%d): %v", i, err)
		}
		if rec.Severity == vxl.SeverityError {
			errors++
		}
	}
	_ = l.Close()

	out := filepath.Join(home, "errors.txt")
	if code, _, stderr := runCLI(t, "--severity", "error", "--export", out, logPath); code != 0 {
		t.Fatalf("export code = %d stderr = %q", code, stderr)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if n := strings.Count(string(data), "Severity: ERROR"); n != errors {
		t.Errorf("export has %d errors, log has %d", n, errors)
	}

	if code, _, _ := runCLI(t, "gen", "--count", "0", filepath.Join(home, "none.vxl")); code != 1 {
		t.Errorf("gen with zero count exited %d", code)
	}
}

func TestDuckDBExport(t *testing.T) {
	home := isolate(t)
	logPath := vxltest.Write(t, vxltest.Entries(12))
	dbPath := filepath.Join(home, "exports.duckdb")

	code, stdout, stderr := runCLI(t, "--component", "KexDll", "--duckdb", dbPath, logPath)
	if code != 0 {
		t.Fatalf("code = %d stderr = %q", code, stderr)
	}
	if !strings.Contains(stdout, ": 4 entries in ") {
		t.Errorf("stdout = %q", stdout)
	}

	// KexDll entries are 0, 3, 6 and 9.
	code, stdout, stderr = runCLI(t, "db", dbPath)
	if code != 0 {
		t.Fatalf("db code = %d stderr = %q", code, stderr)
	}
	for _, want := range []string{"1 exports, 4 entries", "CRITICAL=2 INFO=2", "notepad.exe"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("db listing lacks %q:\n%s", want, stdout)
		}
	}

	code, stdout, _ = runCLI(t, "db", "--sql", "SELECT COUNT(*) AS n FROM entries WHERE severity = 'INFO'", dbPath)
	if code != 0 || !strings.Contains(stdout, "2") {
		t.Errorf("query code = %d stdout = %q", code, stdout)
	}
	if code, _, _ := runCLI(t, "db", "--sql", "DELETE FROM entries", dbPath); code != 1 {
		t.Errorf("write query exited %d, want 1", code)
	}

	if code, _, stderr := runCLI(t, "db", "--delete", "1", dbPath); code != 0 {
		t.Fatalf("delete code = %d stderr = %q", code, stderr)
	}
	if _, stdout, _ := runCLI(t, "db", dbPath); !strings.Contains(stdout, "0 exports, 0 entries") {
		t.Errorf("after delete: %q", stdout)
	}
}

func TestFormatSeverityCounts(t *testing.T) {
	got := formatSeverityCounts(map[string]int64{"DEBUG": 1, "ERROR": 3, "INFO": 0})
	if got != "ERROR=3 DEBUG=1" {
		t.Errorf("formatSeverityCounts = %q", got)
	}
}

func TestList(t *testing.T) {
	home := isolate(t)
	logDir := filepath.Join(home, "state", "vxkex", "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(vxltest.Write(t, vxltest.Entries(12)))
	if err != nil {
		t.Fatal(err)
	}
	files := map[string][]byte{
		"good.vxl":  data,
		"bad.VXL":   []byte("not a log"),
		"notes.txt": []byte("ignored"),
	}
	for name, b := range files {
		if err := os.WriteFile(filepath.Join(logDir, name), b, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	code, stdout, stderr := runCLI(t, "--list")
	if code != 0 {
		t.Fatalf("code = %d stderr = %q", code, stderr)
	}
	for _, want := range []string{"good.vxl", "notepad.exe", "12", "bad.VXL"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("list lacks %q:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "notes.txt") {
		t.Errorf("list shows a non-log file:\n%s", stdout)
	}
}

func TestLoadConfig(t *testing.T) {
	home := isolate(t)
	cfgPath := filepath.Join(home, "config.yml")
	yml := "scan-ahead: 50\ntimezone: UTC\nexport-dir: ~/exports\n"
	if err := os.WriteFile(cfgPath, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VXLVIEW_REVERSE_SCROLL_WHEEL", "true")

	flags := newFlagSet()
	if err := flags.Parse([]string{"--config", cfgPath, "--timezone", "Europe/Berlin"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	want := appConfig{
		LogDir:             filepath.Join(home, "state", "vxkex", "logs"),
		ExportDir:          filepath.Join(home, "exports"),
		Timezone:           "Europe/Berlin",
		ReverseScrollWheel: true,
		ScanAhead:          50,
		APIAddr:            defaultAPIAddr,
		QueryTimeout:       defaultQueryTimeout,
		InsertBatchSize:    defaultInsertBatchSize,
		ConfigPath:         cfgPath,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	home := isolate(t)
	cfgPath := filepath.Join(home, "config.yml")
	if err := os.WriteFile(cfgPath, []byte("scan-ahead: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	flags := newFlagSet()
	if err := flags.Parse([]string{"--config", cfgPath}); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(flags); err == nil {
		t.Error("scan-ahead 0 accepted")
	}
}

func TestLocation(t *testing.T) {
	tests := []struct {
		zone string
		want string
		ok   bool
	}{
		{"", "Local", true},
		{"UTC", "UTC", true},
		{"America/New_York", "America/New_York", true},
		{"Mars/Olympus", "", false},
	}
	for _, tt := range tests {
		loc, err := appConfig{Timezone: tt.zone}.location()
		if (err == nil) != tt.ok {
			t.Errorf("location(%q) err = %v", tt.zone, err)
			continue
		}
		if tt.ok && loc.String() != tt.want {
			t.Errorf("location(%q) = %s, want %s", tt.zone, loc, tt.want)
		}
	}
}

func TestBuildCriteria_TimeBounds(t *testing.T) {
	now := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
	flags := newFlagSet()
	if err := flags.Parse([]string{"--since", "-30m", "--until", "2024-03-09 14:50:00"}); err != nil {
		t.Fatal(err)
	}
	c, err := buildCriteria(flags, "", now)
	if err != nil {
		t.Fatalf("buildCriteria: %v", err)
	}
	if !c.Since.Equal(now.Add(-30*time.Minute)) || !c.Until.Equal(time.Date(2024, 3, 9, 14, 50, 0, 0, time.UTC)) {
		t.Errorf("since = %v until = %v", c.Since, c.Until)
	}
}
