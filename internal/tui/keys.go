package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	New    key.Binding
	Stop   key.Binding
	Pause  key.Binding
	Export key.Binding
	Tab1   key.Binding
	Tab2   key.Binding
	Tab    key.Binding
	Help   key.Binding
	Enter  key.Binding
	Back   key.Binding
	Up     key.Binding
	Down   key.Binding
	Left   key.Binding
	Right  key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	New: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new countdown"),
	),
	Stop: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "stop"),
	),
	Pause: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "pause/resume"),
	),
	Export: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "export"),
	),
	Tab1: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "timer"),
	),
	Tab2: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "history"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Left: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "earlier"),
	),
	Right: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "later"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// contextHelp is the help.KeyMap shown in the footer. It lists only the keys
// that do something in the current view.
type contextHelp struct {
	view     viewState
	counting bool
}

func (c contextHelp) ShortHelp() []key.Binding {
	switch {
	case c.view == viewHistory:
		return []key.Binding{keys.Left, keys.Right, keys.Export, keys.Help, keys.Quit}
	case c.counting:
		return []key.Binding{keys.Pause, keys.Stop, keys.Help, keys.Quit}
	default:
		return []key.Binding{keys.New, keys.Tab, keys.Help, keys.Quit}
	}
}

func (c contextHelp) FullHelp() [][]key.Binding {
	groups := [][]key.Binding{c.ShortHelp()}
	if c.view == viewTimer && !c.counting {
		groups = append(groups, []key.Binding{keys.Enter, keys.Back})
	}
	return append(groups,
		[]key.Binding{keys.Tab1, keys.Tab2, keys.Tab},
		[]key.Binding{keys.Up, keys.Down, keys.Export},
	)
}
