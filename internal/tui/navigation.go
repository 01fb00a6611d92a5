package tui

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/vxlview/internal/export"
	"github.com/tinytelemetry/vxlview/internal/filter"
	"github.com/tinytelemetry/vxlview/internal/session"
	"github.com/tinytelemetry/vxlview/internal/vxl"
)

// handleKeyPress dispatches key events: modal stack first, then inline
// handlers (filter/go-to), then global shortcuts.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}

	// Modal on stack gets the event first.
	if modal := m.TopModal(); modal != nil {
		pop, cmd := modal.Update(msg)
		if pop {
			m.PopModal()
		}
		return m, cmd
	}

	for _, entry := range m.inlineHandlers {
		if entry.isActive(m) {
			handled, cmd := entry.handler.HandleKey(m, msg)
			if handled {
				return m, cmd
			}
			break
		}
	}

	return m.handleGlobalKeys(msg)
}

// handleGlobalKeys handles list-level shortcuts.
// Only reached when no modal is on the stack and no inline handler is active.
func (m *Model) handleGlobalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys

	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit

	case key.Matches(msg, k.Help):
		m.PushModal(NewHelpModal(m))
		return m, nil

	case key.Matches(msg, k.Escape):
		if m.sess.Filter().IsZero() {
			return m, nil
		}
		m.minSeverity = 0
		m.filterInput.SetValue("")
		return m, m.applyFilter(filter.Criteria{})
	}

	if !m.sess.IsOpen() {
		return m, nil
	}

	switch {
	case key.Matches(msg, k.Up):
		return m, m.moveTo(m.cursor - 1)

	case key.Matches(msg, k.Down):
		return m, m.moveTo(m.cursor + 1)

	case key.Matches(msg, k.PageUp):
		return m, m.moveTo(m.cursor - m.listHeight())

	case key.Matches(msg, k.PageDown):
		return m, m.moveTo(m.cursor + m.listHeight())

	case key.Matches(msg, k.Home):
		return m, m.moveTo(0)

	case key.Matches(msg, k.End):
		return m, m.moveTo(m.sess.Count() - 1)

	case key.Matches(msg, k.Enter):
		if e, ok := m.row(m.cursor); ok {
			m.PushModal(NewDetailModal(m, m.cursor, e))
		}
		return m, nil

	case key.Matches(msg, k.Filter):
		m.filterActive = true
		m.filterInput.SetValue(m.sess.Filter().Text)
		m.filterInput.CursorEnd()
		return m, m.filterInput.Focus()

	case key.Matches(msg, k.GoTo):
		m.gotoActive = true
		m.gotoInput.SetValue("")
		return m, m.gotoInput.Focus()

	case key.Matches(msg, k.SeverityCycle):
		m.minSeverity = (m.minSeverity + 1) % vxl.NumSeverities
		c := m.sess.Filter()
		c.Severities = severitiesAtLeast(m.minSeverity)
		return m, m.applyFilter(c)

	case key.Matches(msg, k.SeverityFilter):
		m.PushModal(NewSeverityFilterModal(m))
		return m, nil

	case key.Matches(msg, k.CaseSensitive):
		c := m.sess.Filter()
		c.CaseSensitive = !c.CaseSensitive
		if c.CaseSensitive {
			m.setStatus("Text filter is case sensitive")
		} else {
			m.setStatus("Text filter ignores case")
		}
		return m, m.applyFilter(c)

	case key.Matches(msg, k.Export):
		return m, m.startExport()
	}

	return m, nil
}

// severitiesAtLeast returns the severity names kept at cycle position pos.
// Position 0 keeps all of them; each step drops the least important level.
func severitiesAtLeast(pos int) []string {
	if pos <= 0 {
		return nil
	}
	keep := vxl.NumSeverities - pos
	names := make([]string, 0, keep)
	for i := 0; i < keep; i++ {
		names = append(names, vxl.Severity(i).String())
	}
	return names
}

// applyFilter replaces the session filter and keeps the selected entry
// selected when it is still visible.
func (m *Model) applyFilter(c filter.Criteria) tea.Cmd {
	raw := -1
	if e, ok := m.sess.Cached(m.cursor); ok {
		raw = e.Raw
	}
	if err := m.sess.SetFilter(c); err != nil {
		m.setError(err)
		return nil
	}
	m.cursor, m.offset = 0, 0
	if raw >= 0 {
		if d, err := m.sess.FindDisplayIndex(raw); err == nil {
			m.cursor = d
		}
	}
	return m.syncView()
}

// goToRaw selects raw entry n, if the current filter shows it.
func (m *Model) goToRaw(n int) tea.Cmd {
	d, err := m.sess.FindDisplayIndex(n)
	switch {
	case errors.Is(err, session.ErrNotFound):
		if n >= m.sess.RawCount() {
			m.setStatus(fmt.Sprintf("Entry %d does not exist", n))
		} else {
			m.setStatus(fmt.Sprintf("Entry %d is hidden by the filter", n))
		}
		return nil
	case err != nil:
		m.setError(err)
		return nil
	}
	return m.moveTo(d)
}

// startExport writes the current view to the export directory in the
// background.
func (m *Model) startExport() tea.Cmd {
	if m.job != nil {
		m.setStatus("An export is already running")
		return nil
	}
	snap, err := m.sess.Snapshot()
	if err != nil {
		m.setError(err)
		return nil
	}
	path := filepath.Join(m.opts.ExportDir, export.DefaultFileName(snap.SourceApplication))
	job := export.Start(m.ctx, snap, path)
	m.job = job
	m.setStatus("Exporting to " + path)
	return func() tea.Msg {
		st, err := job.Wait()
		return exportDoneMsg{path: job.Path, stats: st, err: err}
	}
}
