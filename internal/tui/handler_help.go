package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// HelpModal displays the key bindings.
type HelpModal struct {
	viewport viewport.Model
	keys     KeyMap
	reverse  bool
}

func NewHelpModal(m *Model) *HelpModal {
	return &HelpModal{
		viewport: viewport.New(80, 20),
		keys:     m.keys,
		reverse:  m.opts.ReverseScrollWheel,
	}
}

func (h *HelpModal) ID() string { return "help" }

func (h *HelpModal) Update(msg tea.Msg) (bool, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "?", "h", "q", "escape", "esc":
			return true, nil
		case "ctrl+c":
			return false, tea.Quit
		}
		return false, scrollViewport(&h.viewport, msg, h.reverse)
	case tea.MouseMsg:
		return false, scrollViewport(&h.viewport, msg, h.reverse)
	}
	return false, nil
}

func (h *HelpModal) View(width, height int) string {
	cw, ch := modalSize(width, height)
	h.viewport.Width = cw
	h.viewport.Height = ch
	h.viewport.SetContent(wrapTextToWidth(renderHelpContent(h.keys), cw))
	return renderModalFrame("Help", h.viewport.View(),
		"up/down/Wheel: Scroll | PgUp/PgDn: Page | ?/h/ESC: Close", cw, ch, width, height)
}

// scrollViewport applies the scroll keys and wheel shared by the text modals.
func scrollViewport(vp *viewport.Model, msg tea.Msg, reverse bool) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			vp.ScrollUp(1)
			return nil
		case "down", "j":
			vp.ScrollDown(1)
			return nil
		case "pgup":
			vp.HalfPageUp()
			return nil
		case "pgdown":
			vp.HalfPageDown()
			return nil
		case "home":
			vp.GotoTop()
			return nil
		case "end":
			vp.GotoBottom()
			return nil
		}
		var cmd tea.Cmd
		*vp, cmd = vp.Update(msg)
		return cmd

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			return nil
		}
		up := msg.Button == tea.MouseButtonWheelUp
		if msg.Button != tea.MouseButtonWheelUp && msg.Button != tea.MouseButtonWheelDown {
			return nil
		}
		if reverse {
			up = !up
		}
		if up {
			vp.ScrollUp(1)
		} else {
			vp.ScrollDown(1)
		}
	}
	return nil
}
