package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/vxlview/internal/filtercache"
)

// startScan resolves display indices up to target off the event loop.
func (m *Model) startScan(target int) tea.Cmd {
	sc, err := m.sess.StartScan(target)
	if err != nil {
		m.setError(err)
		return nil
	}
	m.scanInFlight = true
	ctx := m.ctx
	return func() tea.Msg {
		return scanDoneMsg{scan: sc, err: sc.Run(ctx)}
	}
}

// finishScan commits a background scan and schedules the next one if the
// visible rows are still not covered.
func (m *Model) finishScan(msg scanDoneMsg) tea.Cmd {
	m.scanInFlight = false
	if msg.err != nil {
		if m.ctx.Err() == nil {
			m.setError(msg.err)
		}
		return nil
	}
	if err := m.sess.CommitScan(msg.scan); err != nil {
		if !errors.Is(err, filtercache.ErrStale) {
			m.setError(err)
		}
	}
	return m.syncView()
}
