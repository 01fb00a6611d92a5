package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/tinytelemetry/vxlview/internal/export"
	"github.com/tinytelemetry/vxlview/internal/filter"
	"github.com/tinytelemetry/vxlview/internal/session"
	"github.com/tinytelemetry/vxlview/internal/vxl/vxltest"
)

func newTestModel(t *testing.T, n int, opts Options) *Model {
	t.Helper()
	sess := session.New(session.Options{})
	if err := sess.Open(vxltest.Write(t, vxltest.Entries(n))); err != nil {
		t.Fatalf("Open: %v", err)
	}
	m := New(sess, opts)
	t.Cleanup(func() {
		m.Close()
		_ = sess.Close()
	})
	// Wide enough that no short line is cut; ten list rows.
	m.Update(tea.WindowSizeMsg{Width: 200, Height: 12})
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m *Model, msgs ...tea.Msg) tea.Cmd {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		_, cmd = m.Update(msg)
	}
	return cmd
}

// settle runs cmd, feeding scan results back into the model until no scan
// is pending.
func settle(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for cmd != nil {
		msg := cmd()
		done, ok := msg.(scanDoneMsg)
		if !ok {
			t.Fatalf("unexpected message %T", msg)
		}
		_, cmd = m.Update(done)
	}
	if m.scanInFlight {
		t.Fatal("scan still in flight")
	}
}

func TestCursorMovement(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, 50, Options{})

	press(t, m, runes("j"), runes("j"), tea.KeyMsg{Type: tea.KeyUp})
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor)
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyPgDown})
	if m.cursor != 11 || m.offset != 2 {
		t.Errorf("after pgdown cursor = %d offset = %d, want 11 and 2", m.cursor, m.offset)
	}

	settle(t, m, press(t, m, tea.KeyMsg{Type: tea.KeyEnd}))
	if m.cursor != 49 || m.offset != 40 {
		t.Errorf("after end cursor = %d offset = %d, want 49 and 40", m.cursor, m.offset)
	}
	if !strings.Contains(m.View(), "entry 49") {
		t.Error("last entry not rendered")
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyHome}, tea.KeyMsg{Type: tea.KeyUp})
	if m.cursor != 0 || m.offset != 0 {
		t.Errorf("after home cursor = %d offset = %d", m.cursor, m.offset)
	}
}

func TestEndScansInBackground(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, 1000, Options{ScanAhead: 10})
	settle(t, m, m.applyFilter(filter.Criteria{Components: []string{"VxlView"}}))

	cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnd})
	if cmd == nil || !m.scanInFlight {
		t.Fatal("End far past the resolved prefix did not start a scan")
	}
	if resolved := m.sess.Stats().Resolved; resolved > 20 {
		t.Errorf("frame resolved %d rows synchronously", resolved)
	}
	if !strings.Contains(m.View(), "...") {
		t.Error("unresolved rows should render as placeholders")
	}

	settle(t, m, cmd)
	if !m.sess.CountConfirmed() || m.sess.Count() != 333 {
		t.Fatalf("count = %d confirmed = %v, want 333 confirmed", m.sess.Count(), m.sess.CountConfirmed())
	}
	if m.cursor != 332 {
		t.Errorf("cursor = %d, want 332", m.cursor)
	}
	if !strings.Contains(m.View(), "entry 997") {
		t.Error("last matching entry not rendered")
	}
	if !strings.Contains(m.status, "333 entries") {
		t.Errorf("status = %q", m.status)
	}
}

func TestStaleScanIsDropped(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, 1000, Options{ScanAhead: 10})
	cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnd})
	if cmd == nil {
		t.Fatal("no scan started")
	}
	msg := cmd()

	if m.applyFilter(filter.Criteria{Components: []string{"Loader"}}) != nil {
		t.Fatal("scan started while another is in flight")
	}
	gen := m.sess.Generation()
	press(t, m, msg)
	if m.lastError != "" {
		t.Errorf("stale scan reported an error: %s", m.lastError)
	}
	if m.sess.Generation() != gen {
		t.Error("stale scan changed the index")
	}
}

func TestFilterInput(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, 20, Options{})
	press(t, m, runes("/"))
	if !m.filterActive {
		t.Fatal("filter prompt not active")
	}
	press(t, m, runes("entry 1"))
	if m.sess.Filter().Text != "" {
		t.Fatal("filter applied before enter")
	}
	settle(t, m, press(t, m, tea.KeyMsg{Type: tea.KeyEnter}))
	if m.filterActive || m.sess.Filter().Text != "entry 1" {
		t.Fatalf("filter active = %v text = %q", m.filterActive, m.sess.Filter().Text)
	}

	settle(t, m, press(t, m, tea.KeyMsg{Type: tea.KeyEnd}))
	// entry 1 and entry 10 through entry 19.
	if m.sess.Count() != 11 || m.cursor != 10 {
		t.Errorf("count = %d cursor = %d, want 11 and 10", m.sess.Count(), m.cursor)
	}

	press(t, m, runes("c"))
	if !m.sess.Filter().CaseSensitive {
		t.Error("c did not toggle case sensitivity")
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if !m.sess.Filter().IsZero() {
		t.Errorf("esc left filter %+v", m.sess.Filter())
	}
}

func TestGoTo(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, 12, Options{})
	settle(t, m, m.applyFilter(filter.Criteria{Components: []string{"KexDll"}}))

	goTo := func(n string) {
		t.Helper()
		press(t, m, runes("g"))
		if !m.gotoActive {
			t.Fatal("go-to prompt not active")
		}
		settle(t, m, press(t, m, runes(n), tea.KeyMsg{Type: tea.KeyEnter}))
	}

	goTo("6")
	if m.cursor != 2 {
		t.Errorf("cursor = %d, want 2", m.cursor)
	}

	goTo("7")
	if m.cursor != 2 || !strings.Contains(m.status, "hidden by the filter") {
		t.Errorf("cursor = %d status = %q", m.cursor, m.status)
	}

	goTo("99")
	if !strings.Contains(m.status, "does not exist") {
		t.Errorf("status = %q", m.status)
	}

	goTo("x")
	if !strings.Contains(m.status, "Not an entry number") {
		t.Errorf("status = %q", m.status)
	}
}

func TestSeverityCycle(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, 12, Options{})

	press(t, m, runes("v"))
	want := []string{"CRITICAL", "ERROR", "WARNING", "INFO", "DETAIL"}
	if diff := cmp.Diff(want, m.sess.Filter().Severities); diff != "" {
		t.Errorf("severities after one step (-want +got):\n%s", diff)
	}

	for range 4 {
		press(t, m, runes("v"))
	}
	if diff := cmp.Diff([]string{"CRITICAL"}, m.sess.Filter().Severities); diff != "" {
		t.Errorf("severities at the last step (-want +got):\n%s", diff)
	}

	press(t, m, runes("v"))
	if !m.sess.Filter().IsZero() {
		t.Errorf("cycle did not wrap: %+v", m.sess.Filter())
	}
}

func TestSeverityFilterModal(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, 12, Options{})
	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlF})
	if _, ok := m.TopModal().(*SeverityFilterModal); !ok {
		t.Fatalf("top modal = %T", m.TopModal())
	}

	space := tea.KeyMsg{Type: tea.KeySpace}
	down := runes("j")
	press(t, m, down, space, down, space, down, space)
	if !strings.Contains(m.View(), "[x] ERROR") {
		t.Error("modal does not show ERROR checked")
	}
	settle(t, m, press(t, m, tea.KeyMsg{Type: tea.KeyEnter}))

	if m.HasModal() {
		t.Error("enter did not close the modal")
	}
	if diff := cmp.Diff([]string{"CRITICAL", "ERROR"}, m.sess.Filter().Severities); diff != "" {
		t.Errorf("severities (-want +got):\n%s", diff)
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlF}, runes("j"), space, tea.KeyMsg{Type: tea.KeyEsc})
	if diff := cmp.Diff([]string{"CRITICAL", "ERROR"}, m.sess.Filter().Severities); diff != "" {
		t.Errorf("escape changed severities (-want +got):\n%s", diff)
	}
}

func TestDetailAndHelpModals(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, 4, Options{})
	press(t, m, runes("j"), tea.KeyMsg{Type: tea.KeyEnter})
	detail, ok := m.TopModal().(*DetailModal)
	if !ok {
		t.Fatalf("top modal = %T", m.TopModal())
	}
	if !strings.Contains(detail.text, "Severity: ERROR") || strings.Contains(detail.text, "\r") {
		t.Errorf("detail text = %q", detail.text)
	}
	if !strings.Contains(m.View(), "Entry 1") {
		t.Error("detail title not rendered")
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.HasModal() {
		t.Fatal("esc did not close the detail modal")
	}

	press(t, m, tea.WindowSizeMsg{Width: 200, Height: 60}, runes("?"))
	if !strings.Contains(m.View(), "go to raw entry") {
		t.Error("help does not list the go-to binding")
	}
	press(t, m, runes("?"))
	if m.HasModal() {
		t.Error("? did not close help")
	}
}

func TestMouseWheel(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, 20, Options{ReverseScrollWheel: true})
	wheel := func(b tea.MouseButton) tea.MouseMsg {
		return tea.MouseMsg{Action: tea.MouseActionPress, Button: b}
	}
	press(t, m, wheel(tea.MouseButtonWheelUp), wheel(tea.MouseButtonWheelUp), wheel(tea.MouseButtonWheelDown))
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor)
	}

	press(t, m, tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonLeft, Y: 4})
	if m.cursor != 3 {
		t.Errorf("click selected %d, want 3", m.cursor)
	}
}

func TestExport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := newTestModel(t, 12, Options{ExportDir: dir})
	settle(t, m, m.applyFilter(filter.Criteria{Severities: []string{"ERROR"}}))

	cmd := press(t, m, runes("x"))
	if cmd == nil || m.job == nil {
		t.Fatal("export did not start")
	}
	if press(t, m, runes("x")) != nil {
		t.Error("second export started while one is running")
	}

	press(t, m, cmd())
	if m.job != nil || m.lastError != "" {
		t.Fatalf("job = %v error = %q", m.job, m.lastError)
	}
	if !strings.Contains(m.status, "Exported 2 entries") {
		t.Errorf("status = %q", m.status)
	}

	data, err := os.ReadFile(filepath.Join(dir, export.DefaultFileName("notepad.exe")))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got := strings.Count(string(data), "Severity: ERROR"); got != 2 {
		t.Errorf("export has %d ERROR entries, want 2", got)
	}
}

func TestSeveritiesAtLeast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pos  int
		want []string
	}{
		{0, nil},
		{3, []string{"CRITICAL", "ERROR", "WARNING"}},
		{5, []string{"CRITICAL"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, severitiesAtLeast(tt.pos)); diff != "" {
			t.Errorf("severitiesAtLeast(%d) (-want +got):\n%s", tt.pos, diff)
		}
	}
}
