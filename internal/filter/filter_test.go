package filter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/tinytelemetry/vxlview/internal/entrycache"
	"github.com/tinytelemetry/vxlview/internal/vxl"
	"github.com/tinytelemetry/vxlview/internal/vxl/vxltest"
)

// testEntries materializes vxltest.Entries(n) through a real log.
func testEntries(t *testing.T, n int) (*vxl.Log, []*entrycache.Entry) {
	t.Helper()
	l := vxltest.Open(t, vxltest.Entries(n))
	c := entrycache.New(l, nil)
	out := make([]*entrycache.Entry, n)
	for i := range out {
		e, err := c.Get(i)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		out[i] = e
	}
	return l, out
}

func matching(p *Predicate, entries []*entrycache.Entry) []int {
	var raws []int
	for _, e := range entries {
		if p.Matches(e) {
			raws = append(raws, e.Raw)
		}
	}
	return raws
}

func TestMatches(t *testing.T) {
	l, entries := testEntries(t, 12)

	tests := []struct {
		name     string
		criteria Criteria
		want     []int
	}{
		{"zero matches all", Criteria{}, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}},
		{"component", Criteria{Components: []string{"VxlView"}}, []int{1, 4, 7, 10}},
		{"two components", Criteria{Components: []string{"KexDll", "Loader"}}, []int{0, 2, 3, 5, 6, 8, 9, 11}},
		{"file", Criteria{Files: []string{"dllinit.c"}}, []int{2, 5, 8, 11}},
		{"function", Criteria{Functions: []string{"main"}}, []int{0, 3, 6, 9}},
		{"severity", Criteria{Severities: []string{"error", "crit"}}, []int{0, 1, 6, 7}},
		{"text in header", Criteria{Text: "ENTRY 1"}, []int{1, 10, 11}},
		{"text case sensitive", Criteria{Text: "ENTRY 1", CaseSensitive: true}, nil},
		{"text in body", Criteria{Text: "body of entry 4"}, []int{4}},
		{"since", Criteria{Since: vxltest.Base.Add(9 * time.Second)}, []int{9, 10, 11}},
		{"until inclusive", Criteria{Until: vxltest.Base.Add(2 * time.Second)}, []int{0, 1, 2}},
		{"tid", Criteria{TID: 0x11}, []int{1, 5, 9}},
		{"pid mismatch", Criteria{PID: 7}, nil},
		{"combined", Criteria{Components: []string{"KexDll"}, Severities: []string{"warning"}}, nil},
		{"expr", Criteria{Expr: `line > 108 && component != "Loader"`}, []int{9, 10}},
		{"expr string functions", Criteria{Expr: `header.endsWith("7")`}, []int{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.criteria, l)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			got := matching(p, entries)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("matches mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMatchesDeterministic(t *testing.T) {
	l, entries := testEntries(t, 6)
	p, err := Compile(Criteria{Text: "entry", Severities: []string{"info", "debug"}}, l)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	first := matching(p, entries)
	for i := 0; i < 3; i++ {
		if diff := cmp.Diff(first, matching(p, entries)); diff != "" {
			t.Fatalf("evaluation %d differs:\n%s", i, diff)
		}
	}
}

func TestCompileErrors(t *testing.T) {
	l, _ := testEntries(t, 1)

	tests := []struct {
		name     string
		criteria Criteria
	}{
		{"unknown severity", Criteria{Severities: []string{"loud"}}},
		{"inverted range", Criteria{Since: vxltest.Base, Until: vxltest.Base.Add(-time.Hour)}},
		{"bad expr", Criteria{Expr: `line >`}},
		{"non bool expr", Criteria{Expr: `line + 1`}},
		{"unknown variable", Criteria{Expr: `colour == "red"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(tt.criteria, l); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Compile(Criteria{Components: []string{"x"}}, nil); err == nil {
		t.Error("expected error for name criteria without names")
	}
}

func TestMatchAll(t *testing.T) {
	_, entries := testEntries(t, 3)
	if got := matching(MatchAll(), entries); len(got) != 3 {
		t.Errorf("MatchAll matched %v", got)
	}
	if MatchAll().Matches(nil) {
		t.Error("nil entry should never match")
	}
}

func TestCriteriaEqual(t *testing.T) {
	a := Criteria{Components: []string{"KexDll"}, Text: "x", Since: vxltest.Base}
	b := a.Clone()
	if !a.Equal(b) {
		t.Error("clone should be equal")
	}
	b.Components[0] = "Loader"
	if a.Equal(b) {
		t.Error("clone shares backing array")
	}
	if !(Criteria{}).IsZero() {
		t.Error("zero criteria should be zero")
	}
	if (Criteria{Expr: "true"}).IsZero() {
		t.Error("expr criteria should not be zero")
	}
}

func TestPresetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.yml")
	want := Criteria{
		Components: []string{"KexDll"},
		Severities: []string{"ERROR", "CRITICAL"},
		Text:       "failed",
		Since:      vxltest.Base,
		Expr:       `pid == 420`,
	}
	if err := SavePreset(path, want); err != nil {
		t.Fatalf("SavePreset: %v", err)
	}
	got, err := LoadPreset(path)
	if err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}
	if !want.Equal(got) {
		t.Errorf("LoadPreset = %+v, want %+v", got, want)
	}
}

func TestLoadPresetRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	if err := os.WriteFile(path, []byte("components: [a]\ncolour: red\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadPreset(path)
	if err == nil || !strings.Contains(err.Error(), "colour") {
		t.Errorf("LoadPreset err = %v, want unknown field error", err)
	}
}

func TestLoadPresetEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yml")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadPreset(path)
	if err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}
	if !c.IsZero() {
		t.Errorf("LoadPreset(empty) = %+v", c)
	}
}
