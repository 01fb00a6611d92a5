package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/vxlview/internal/entrycache"
	"github.com/tinytelemetry/vxlview/internal/render"
)

// DetailModal shows one entry in long form.
type DetailModal struct {
	viewport viewport.Model
	title    string
	text     string
	reverse  bool
}

func NewDetailModal(m *Model, display int, e *entrycache.Entry) *DetailModal {
	text, err := render.Render(e, m.sess.Names(), true)
	switch {
	case errors.Is(err, render.ErrTruncated):
		text += "\n\n[truncated]"
	case err != nil:
		text = err.Error()
	}
	return &DetailModal{
		viewport: viewport.New(80, 20),
		title:    fmt.Sprintf("Entry %d (row %d of %d)", e.Raw, display+1, m.sess.Count()),
		text:     strings.ReplaceAll(text, "\r\n", "\n"),
		reverse:  m.opts.ReverseScrollWheel,
	}
}

func (d *DetailModal) ID() string { return "detail" }

func (d *DetailModal) Update(msg tea.Msg) (bool, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter", "q", "escape", "esc":
			return true, nil
		case "ctrl+c":
			return false, tea.Quit
		}
	}
	return false, scrollViewport(&d.viewport, msg, d.reverse)
}

func (d *DetailModal) View(width, height int) string {
	cw, ch := modalSize(width, height)
	d.viewport.Width = cw
	d.viewport.Height = ch
	d.viewport.SetContent(wrapTextToWidth(d.text, cw))
	return renderModalFrame(d.title, d.viewport.View(),
		"up/down/Wheel: Scroll | PgUp/PgDn: Page | Enter/ESC: Close", cw, ch, width, height)
}
