package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/vxlview/internal/logparse"
	"github.com/tinytelemetry/vxlview/internal/vxl"
)

// Rows 0 and 1 are "Select All" and "Select None", row 2 is a separator and
// the severities follow.
const severityRowOffset = 3

// SeverityFilterModal picks the severities the view shows. Changes are
// applied on enter; escape discards them.
type SeverityFilterModal struct {
	model    *Model
	selected int
	checked  [vxl.NumSeverities]bool
}

func NewSeverityFilterModal(m *Model) *SeverityFilterModal {
	s := &SeverityFilterModal{model: m}
	sevs := m.sess.Filter().Severities
	for i := range s.checked {
		s.checked[i] = len(sevs) == 0
	}
	for _, name := range sevs {
		if sev, ok := logparse.ParseSeverity(name); ok {
			s.checked[sev] = true
		}
	}
	return s
}

func (s *SeverityFilterModal) ID() string { return "severityfilter" }

func (s *SeverityFilterModal) Update(msg tea.Msg) (bool, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return false, nil // swallow mouse events
	}
	last := severityRowOffset + vxl.NumSeverities - 1

	switch key.String() {
	case "ctrl+c":
		return false, tea.Quit
	case "up", "k":
		if s.selected > 0 {
			s.selected--
			if s.selected == severityRowOffset-1 {
				s.selected--
			}
		}
	case "down", "j":
		if s.selected < last {
			s.selected++
			if s.selected == severityRowOffset-1 {
				s.selected++
			}
		}
	case " ":
		s.toggle()
	case "enter":
		if s.selected < severityRowOffset {
			s.toggle()
		}
		return true, s.apply()
	case "escape", "esc":
		return true, nil
	}
	return false, nil
}

func (s *SeverityFilterModal) toggle() {
	switch {
	case s.selected == 0 || s.selected == 1:
		for i := range s.checked {
			s.checked[i] = s.selected == 0
		}
	case s.selected >= severityRowOffset:
		i := s.selected - severityRowOffset
		s.checked[i] = !s.checked[i]
	}
}

// apply installs the checked severities. Checking all of them, or none,
// clears the severity filter.
func (s *SeverityFilterModal) apply() tea.Cmd {
	var names []string
	for i, on := range s.checked {
		if on {
			names = append(names, vxl.Severity(i).String())
		}
	}
	if len(names) == vxl.NumSeverities {
		names = nil
	}
	m := s.model
	c := m.sess.Filter()
	c.Severities = names
	m.minSeverity = 0
	return m.applyFilter(c)
}

func (s *SeverityFilterModal) View(width, height int) string {
	var b strings.Builder
	row := func(i int, text string, style lipgloss.Style) {
		cursor := "  "
		if i == s.selected {
			cursor = "> "
			style = style.Reverse(true)
		}
		b.WriteString(cursor + style.Render(text) + "\n")
	}

	plain := lipgloss.NewStyle()
	row(0, "Select All", plain)
	row(1, "Select None", plain)
	b.WriteString("  " + strings.Repeat("─", 16) + "\n")
	for i := 0; i < vxl.NumSeverities; i++ {
		mark := " "
		if s.checked[i] {
			mark = "x"
		}
		sev := vxl.Severity(i)
		row(severityRowOffset+i, fmt.Sprintf("[%s] %s", mark, sev), plain.Foreground(severityColor(sev)))
	}

	cw := 30
	ch := severityRowOffset + vxl.NumSeverities
	return renderModalFrame("Severity Filter", b.String(),
		"Space: Toggle | Enter: Apply | ESC: Cancel", cw, ch, width, height)
}
