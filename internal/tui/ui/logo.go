package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// Logo displays the dashboard banner.
type Logo struct {
	*tview.TextView
}

// NewLogo creates the banner.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	title := Tag(theme.TitleColor)
	_, _ = fmt.Fprintf(tv,
		"[%s::b]╦ ╦╔═╗╔═╗ ╔╗ ╔═╗╔╦╗[-:-:-]\n"+
			"[%s::b]║║║╠═╝╠═╝ ╠╩╗║ ║ ║ [-:-:-]\n"+
			"[%s::b]╚╩╝╩  ╩   ╚═╝╚═╝ ╩ [-:-:-]\n"+
			"[%s]Painel do Bot[-:-:-]",
		title, title, title, Tag(theme.FgColor),
	)
	return &Logo{TextView: tv}
}
