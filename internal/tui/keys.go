package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// KeyMap defines all key bindings for the console.
type KeyMap struct {
	Up       Key
	Down     Key
	PageUp   Key
	PageDown Key

	Select  Key
	Back    Key
	Quit    Key
	Search  Key
	Refresh Key

	// Function keys switch modules.
	F1  Key
	F2  Key
	F3  Key
	F4  Key
	F5  Key
	F6  Key
	F10 Key
}

// Key represents a key binding.
type Key struct {
	Keys    []string
	Help    string
	Enabled bool
}

func bind(help string, keys ...string) Key {
	return Key{Keys: keys, Help: help, Enabled: true}
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:       bind("up", "up", "k"),
		Down:     bind("down", "down", "j"),
		PageUp:   bind("page up", "pgup"),
		PageDown: bind("page down", "pgdown"),

		Select:  bind("select", "enter"),
		Back:    bind("back", "esc"),
		Quit:    bind("quit", "q", "ctrl+c"),
		Search:  bind("search", "/"),
		Refresh: bind("refresh", "r"),

		F1:  bind("Help", "f1"),
		F2:  bind("Dashboard", "f2"),
		F3:  bind("Complaints", "f3"),
		F4:  bind("Work Orders", "f4"),
		F5:  bind("Contractors", "f5"),
		F6:  bind("Briefing", "f6"),
		F10: bind("Quit", "f10"),
	}
}

// Matches checks if a key message matches this key binding.
func (k Key) Matches(msg tea.KeyMsg) bool {
	if !k.Enabled {
		return false
	}
	keyStr := msg.String()
	for _, key := range k.Keys {
		if keyStr == key {
			return true
		}
	}
	return false
}

// MatchesAny checks if a key message matches any of the bindings.
func MatchesAny(msg tea.KeyMsg, keys ...Key) bool {
	for _, k := range keys {
		if k.Matches(msg) {
			return true
		}
	}
	return false
}

// IsQuit checks if the key message is a quit command.
func (km KeyMap) IsQuit(msg tea.KeyMsg) bool {
	return km.Quit.Matches(msg) || km.F10.Matches(msg)
}

// IsFunctionKey checks if the key message is a bound function key.
func (km KeyMap) IsFunctionKey(msg tea.KeyMsg) bool {
	return MatchesAny(msg, km.F1, km.F2, km.F3, km.F4, km.F5, km.F6, km.F10)
}

// FunctionKeyModule returns the module a function key opens, or "quit".
func (km KeyMap) FunctionKeyModule(msg tea.KeyMsg) Module {
	switch {
	case km.F1.Matches(msg):
		return ModuleHelp
	case km.F2.Matches(msg):
		return ModuleDashboard
	case km.F3.Matches(msg):
		return ModuleComplaints
	case km.F4.Matches(msg):
		return ModuleWorkOrders
	case km.F5.Matches(msg):
		return ModuleContractors
	case km.F6.Matches(msg):
		return ModuleBriefing
	case km.F10.Matches(msg):
		return moduleQuit
	default:
		return ""
	}
}

// StatusBarHelp returns the help text for the status bar, shortened for
// narrow terminals.
func (km KeyMap) StatusBarHelp(width int) string {
	if GetBreakpoint(width) == BreakpointNarrow {
		return "F1 Help F2 Dash F3 Cmpl F4 WO F5 Ctr F6 Brief F10 Quit"
	}
	return "[F1]Help [F2]Dashboard [F3]Complaints [F4]Work Orders [F5]Contractors [F6]Briefing [F10]Quit"
}
