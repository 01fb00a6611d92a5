package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, m.syncView()

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		return m.handleMouseEvent(msg)

	case scanDoneMsg:
		return m, m.finishScan(msg)

	case exportDoneMsg:
		m.job = nil
		if msg.err != nil {
			m.setError(fmt.Errorf("export %s: %w", msg.path, msg.err))
			return m, nil
		}
		s := fmt.Sprintf("Exported %d entries to %s", msg.stats.Entries, msg.path)
		if msg.stats.Truncated > 0 || msg.stats.Skipped > 0 {
			s += fmt.Sprintf(" (%d truncated, %d skipped)", msg.stats.Truncated, msg.stats.Skipped)
		}
		m.setStatus(s)
		return m, nil
	}

	return m, nil
}

// handleMouseEvent routes mouse input: modal first, then inline prompts, then
// the wheel scrolls the list.
func (m *Model) handleMouseEvent(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if modal := m.TopModal(); modal != nil {
		pop, cmd := modal.Update(msg)
		if pop {
			m.PopModal()
		}
		return m, cmd
	}

	for _, entry := range m.inlineHandlers {
		if entry.isActive(m) {
			handled, cmd := entry.handler.HandleMouse(m, msg)
			if handled {
				return m, cmd
			}
			break
		}
	}

	if msg.Action != tea.MouseActionPress {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if m.opts.ReverseScrollWheel {
			return m, m.moveTo(m.cursor + 1)
		}
		return m, m.moveTo(m.cursor - 1)
	case tea.MouseButtonWheelDown:
		if m.opts.ReverseScrollWheel {
			return m, m.moveTo(m.cursor - 1)
		}
		return m, m.moveTo(m.cursor + 1)
	case tea.MouseButtonLeft:
		// Row 0 is the header.
		if msg.Y >= 1 && msg.Y <= m.listHeight() {
			return m, m.moveTo(m.offset + msg.Y - 1)
		}
	}
	return m, nil
}

// statusVisible reports whether the status message is still fresh.
func (m *Model) statusVisible(now time.Time) bool {
	return !m.statusAt.IsZero() && now.Sub(m.statusAt) < statusTTL
}
