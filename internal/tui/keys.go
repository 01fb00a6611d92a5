package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all viewer key bindings with built-in help text.
type KeyMap struct {
	// Global
	Quit      key.Binding
	ForceQuit key.Binding
	Help      key.Binding
	Escape    key.Binding

	// Navigation
	Up       key.Binding
	Down     key.Binding
	Home     key.Binding
	End      key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Enter    key.Binding

	// Actions
	Filter         key.Binding
	SeverityCycle  key.Binding
	SeverityFilter key.Binding
	CaseSensitive  key.Binding
	GoTo           key.Binding
	Export         key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?", "h"),
			key.WithHelp("?/h", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("escape", "esc"),
			key.WithHelp("esc", "clear filter"),
		),

		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Home: key.NewBinding(
			key.WithKeys("home"),
			key.WithHelp("home", "first entry"),
		),
		End: key.NewBinding(
			key.WithKeys("end"),
			key.WithHelp("end", "last entry"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "pagedown"),
			key.WithHelp("pgdn", "page down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "details"),
		),

		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "text filter"),
		),
		SeverityCycle: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "cycle min severity"),
		),
		SeverityFilter: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("ctrl+f", "severity filter"),
		),
		CaseSensitive: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "toggle case sensitivity"),
		),
		GoTo: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "go to raw entry"),
		),
		Export: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "export view"),
		),
	}
}

// helpBindings lists bindings in the order the help modal shows them.
func (k KeyMap) helpBindings() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.PageUp, k.PageDown, k.Home, k.End, k.Enter,
		k.Filter, k.SeverityCycle, k.SeverityFilter, k.CaseSensitive, k.Escape,
		k.GoTo, k.Export, k.Help, k.Quit,
	}
}
