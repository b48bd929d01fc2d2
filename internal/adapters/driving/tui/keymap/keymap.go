// Package keymap holds the TUI key bindings. KeyMap satisfies help.KeyMap
// from bubbles, so the status bar can render it directly.
package keymap

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Quit       key.Binding
	Help       key.Binding
	SwitchView key.Binding // job watch <-> knowledge review
	Up         key.Binding
	Down       key.Binding
	Verify     key.Binding
	Flag       key.Binding // toggles; flagged items wait for a human
	Refresh    key.Binding
}

func bind(label, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(label, desc))
}

func Default() *KeyMap {
	return &KeyMap{
		Quit:       bind("q", "quit", "q", "ctrl+c"),
		Help:       bind("?", "more keys", "?"),
		SwitchView: bind("tab", "switch view", "tab"),
		Up:         bind("↑/k", "up", "up", "k"),
		Down:       bind("↓/j", "down", "down", "j"),
		Verify:     bind("v", "verify", "v"),
		Flag:       bind("f", "flag", "f"),
		Refresh:    bind("r", "refresh", "r"),
	}
}

func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SwitchView, k.Help, k.Quit}
}

// ReviewHelp is the short help while the review list has focus.
func (k *KeyMap) ReviewHelp() []key.Binding {
	return []key.Binding{k.Verify, k.Flag, k.Refresh, k.SwitchView, k.Quit}
}

func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.SwitchView},
		{k.Verify, k.Flag, k.Refresh},
		{k.Help, k.Quit},
	}
}
