package ui

import "github.com/rivo/tview"

// MenuHint describes a keyboard shortcut for display in the menu bar.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // section shortcuts, drawn in a different color
}

// Component is a page shown in the main area.
type Component interface {
	tview.Primitive
	Name() string
}
