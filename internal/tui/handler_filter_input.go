package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// filterInputHandler edits the text filter. The filter is applied on enter
// only, since every change rebuilds the filtered index.
type filterInputHandler struct{}

func (h filterInputHandler) HandleKey(m *Model, msg tea.KeyMsg) (bool, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return true, tea.Quit
	case "escape", "esc":
		m.filterActive = false
		m.filterInput.Blur()
		m.filterInput.SetValue(m.sess.Filter().Text)
		return true, m.syncView()
	case "enter":
		m.filterActive = false
		m.filterInput.Blur()
		c := m.sess.Filter()
		c.Text = m.filterInput.Value()
		return true, m.applyFilter(c)
	default:
		var cmd tea.Cmd
		m.filterInput, cmd = m.filterInput.Update(msg)
		return true, cmd
	}
}

func (h filterInputHandler) HandleMouse(_ *Model, _ tea.MouseMsg) (bool, tea.Cmd) {
	return true, nil // swallow mouse events during filter input
}
