package tui

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/vxlview/internal/render"
)

var (
	headerStyle   = lipgloss.NewStyle().Foreground(ColorWhite).Background(ColorNavy).Bold(true)
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	pendingStyle  = lipgloss.NewStyle().Foreground(ColorGray).Italic(true)
	statusStyle   = lipgloss.NewStyle().Foreground(ColorGray)
	errorStyle    = lipgloss.NewStyle().Foreground(ColorRed)
	promptStyle   = lipgloss.NewStyle().Foreground(ColorBlue).Bold(true)
)

// View renders the viewer
func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "Initializing viewer..."
	}

	// If a modal is on the stack, render it full-screen.
	if modal := m.TopModal(); modal != nil {
		return modal.View(m.width, m.height)
	}

	if m.height < 5 || m.width < 20 {
		return "Terminal too small."
	}

	lines := make([]string, 0, m.height)
	lines = append(lines, m.renderHeader())
	lines = append(lines, m.renderRows()...)
	if prompt := m.renderPrompt(); prompt != "" {
		lines = append(lines, prompt)
	}
	lines = append(lines, m.renderStatus(time.Now()))
	return strings.Join(lines, "\n")
}

func (m *Model) renderHeader() string {
	title := "vxlview"
	if m.sess.IsOpen() {
		title = fmt.Sprintf("vxlview  %s  [%s]", filepath.Base(m.sess.Path()), m.sess.SourceApplication())
	}
	return headerStyle.Width(m.width).MaxWidth(m.width).Render(title)
}

// renderRows draws exactly listHeight lines.
func (m *Model) renderRows() []string {
	h := m.listHeight()
	rows := make([]string, 0, h)
	if !m.sess.IsOpen() {
		rows = append(rows, pendingStyle.Render("No log open."))
	} else {
		count := m.sess.Count()
		for d := m.offset; d < m.offset+h && d < count; d++ {
			rows = append(rows, m.renderRow(d))
		}
		if count == 0 && m.sess.CountConfirmed() {
			rows = append(rows, pendingStyle.Render("No entries match the filter."))
		}
	}
	for len(rows) < h {
		rows = append(rows, "")
	}
	return rows
}

func (m *Model) renderRow(d int) string {
	e, ok := m.row(d)
	if !ok {
		return pendingStyle.Render("  ...")
	}
	// Two columns for the cursor marker.
	w := max(1, m.width-2)
	text, err := render.RenderLimit(e, m.sess.Names(), false, w*4)
	if err != nil && !errors.Is(err, render.ErrTruncated) {
		text = err.Error()
	}
	text = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(text)

	style := lipgloss.NewStyle().Foreground(severityColor(e.Severity)).MaxWidth(w)
	if d == m.cursor {
		return "> " + style.Inherit(selectedStyle).Render(text)
	}
	return "  " + style.Render(text)
}

func (m *Model) renderPrompt() string {
	switch {
	case m.filterActive:
		return promptStyle.Render("Filter: ") + m.filterInput.View()
	case m.gotoActive:
		return promptStyle.Render("Go to entry: ") + m.gotoInput.View()
	}
	return ""
}

func (m *Model) renderStatus(now time.Time) string {
	var parts []string
	if m.sess.IsOpen() {
		count := fmt.Sprintf("%d", m.sess.Count())
		if !m.sess.CountConfirmed() {
			count = "~" + count
		}
		pos := 0
		if m.sess.Count() > 0 {
			pos = m.cursor + 1
		}
		parts = append(parts, fmt.Sprintf("%d/%s of %d", pos, count, m.sess.RawCount()))
		if f := filterSummary(m); f != "" {
			parts = append(parts, f)
		}
	}

	if len(parts) == 0 {
		parts = append(parts, "?: help  q: quit")
	}
	line := statusStyle.Render(strings.Join(parts, " | "))
	if m.statusVisible(now) {
		if m.lastError != "" {
			line += "  " + errorStyle.Render(m.lastError)
		} else if m.status != "" {
			line += "  " + m.status
		}
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(line)
}

// filterSummary describes the active filter in a few words.
func filterSummary(m *Model) string {
	c := m.sess.Filter()
	if c.IsZero() {
		return ""
	}
	var parts []string
	if len(c.Severities) > 0 {
		parts = append(parts, strings.Join(c.Severities, ","))
	}
	if len(c.Components) > 0 {
		parts = append(parts, "component="+strings.Join(c.Components, ","))
	}
	if c.Text != "" {
		q := fmt.Sprintf("%q", c.Text)
		if c.CaseSensitive {
			q += " (case)"
		}
		parts = append(parts, q)
	}
	if c.Expr != "" {
		parts = append(parts, "expr")
	}
	if len(parts) == 0 {
		return "filtered"
	}
	return "filter: " + strings.Join(parts, " ")
}
