package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	enter   key.Binding
	back    key.Binding
	search  key.Binding
	status  key.Binding
	delete  key.Binding
	filter  key.Binding
	add     key.Binding
	details key.Binding
	open    key.Binding
	yes     key.Binding
	no      key.Binding
	retry   key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		status:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "status")),
		delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		filter:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
		add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		details: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "details")),
		open:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open in browser")),
		yes:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:      key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		retry:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter},
		{k.search, k.status, k.delete, k.filter},
		{k.back, k.yes, k.no},
		{k.retry, k.quit},
	}
}
