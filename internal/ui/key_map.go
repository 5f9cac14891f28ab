package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	toggle   key.Binding
	next     key.Binding
	prev     key.Binding
	forward  key.Binding
	backward key.Binding
	volUp    key.Binding
	volDown  key.Binding
	tracks   key.Binding
	queue    key.Binding
	library  key.Binding
	enter    key.Binding
	back     key.Binding
	help     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		next:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		prev:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous")),
		forward:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "+5s")),
		backward: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "-5s")),
		volUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		volDown:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "volume down")),
		tracks:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "tracks")),
		queue:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "queue")),
		library:  key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "playlists")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.next, k.prev, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.toggle, k.next, k.prev},
		{k.forward, k.backward, k.volUp, k.volDown},
		{k.tracks, k.queue, k.library, k.back},
		{k.help, k.quit},
	}
}
