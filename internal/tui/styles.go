package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/vxlview/internal/vxl"
)

// Palette shared by every view.
var (
	ColorBlue   = lipgloss.Color("12")
	ColorNavy   = lipgloss.Color("17")
	ColorRed    = lipgloss.Color("9")
	ColorOrange = lipgloss.Color("214")
	ColorGreen  = lipgloss.Color("10")
	ColorGray   = lipgloss.Color("8")
	ColorWhite  = lipgloss.Color("15")
	ColorPurple = lipgloss.Color("13")
)

// severityColor returns the list color of a VXL severity.
func severityColor(sev vxl.Severity) lipgloss.Color {
	switch sev {
	case vxl.SeverityCritical:
		return ColorPurple
	case vxl.SeverityError:
		return ColorRed
	case vxl.SeverityWarning:
		return ColorOrange
	case vxl.SeverityInformation:
		return ColorBlue
	case vxl.SeverityDetail:
		return ColorGreen
	case vxl.SeverityDebug:
		return ColorGray
	default:
		return ColorWhite
	}
}

// wrapTextToWidth word-wraps text to width columns.
func wrapTextToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}

// renderModalFrame lays out a titled, bordered modal around content and
// centers it on screen.
func renderModalFrame(title, content, status string, contentWidth, contentHeight, width, height int) string {
	contentPane := lipgloss.NewStyle().
		Width(contentWidth).
		Height(contentHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(ColorGray).
		Render(content)

	header := lipgloss.NewStyle().
		Width(contentWidth).
		Foreground(ColorBlue).
		Bold(true).
		Render(title)

	statusBar := lipgloss.NewStyle().
		Foreground(ColorGray).
		Render(status)

	modal := lipgloss.JoinVertical(lipgloss.Left, header, contentPane, statusBar)

	finalModal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBlue).
		Render(modal)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, finalModal)
}

// modalSize returns the viewport size for a full-screen modal.
func modalSize(width, height int) (contentWidth, contentHeight int) {
	contentWidth = max(10, width-12)
	contentHeight = max(3, height-10)
	return contentWidth, contentHeight
}
