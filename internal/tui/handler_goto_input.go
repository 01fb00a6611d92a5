package tui

import (
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// gotoInputHandler reads a raw entry number and jumps to it.
type gotoInputHandler struct{}

func (h gotoInputHandler) HandleKey(m *Model, msg tea.KeyMsg) (bool, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return true, tea.Quit
	case "escape", "esc":
		m.gotoActive = false
		m.gotoInput.Blur()
		return true, m.syncView()
	case "enter":
		m.gotoActive = false
		m.gotoInput.Blur()
		n, err := strconv.Atoi(strings.TrimSpace(m.gotoInput.Value()))
		if err != nil || n < 0 {
			m.setStatus("Not an entry number: " + m.gotoInput.Value())
			return true, m.syncView()
		}
		return true, m.goToRaw(n)
	default:
		var cmd tea.Cmd
		m.gotoInput, cmd = m.gotoInput.Update(msg)
		return true, cmd
	}
}

func (h gotoInputHandler) HandleMouse(_ *Model, _ tea.MouseMsg) (bool, tea.Cmd) {
	return true, nil
}
