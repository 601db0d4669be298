package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// InfoData is what the header shows about the active profile.
type InfoData struct {
	User      string
	Phase     string
	Connected bool
	Bot       bool
	Messages  int
	Contacts  int
	Pending   int
	Writes    int
}

// Info renders profile and connection details in the header.
type Info struct {
	*tview.TextView
	theme *Theme
}

// NewInfo creates the header info panel.
func NewInfo(theme *Theme) *Info {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)
	return &Info{TextView: tv, theme: theme}
}

// Update renders d.
func (in *Info) Update(d InfoData) {
	in.Clear()
	label := Tag(in.theme.FgColor)
	value := Tag(in.theme.CounterColor)

	user := d.User
	if user == "" {
		user = "-"
	}
	phase := Tag(in.theme.PendingColor)
	if d.Connected {
		phase = Tag(in.theme.OkColor)
	}
	bot := "desativado"
	if d.Bot {
		bot = "ativo"
	}
	writes := ""
	if d.Writes > 0 {
		writes = fmt.Sprintf("\n[%s::b]Gravando:[-:-:-] [%s]%d[-]", label, value, d.Writes)
	}

	_, _ = fmt.Fprintf(in,
		"[%s::b]Usuário:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]Status:[-:-:-]   [%s]%s[-]\n"+
			"[%s::b]Bot:[-:-:-]      [%s]%s[-]\n"+
			"[%s::b]Mensagens:[-:-:-] [%s]%d[-]\n"+
			"[%s::b]Contatos:[-:-:-]  [%s]%d[-]\n"+
			"[%s::b]Pendentes:[-:-:-] [%s]%d[-]%s",
		label, value, tview.Escape(user),
		label, phase, d.Phase,
		label, value, bot,
		label, value, d.Messages,
		label, value, d.Contacts,
		label, value, d.Pending, writes,
	)
}
