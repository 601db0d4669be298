package views

import (
	"fmt"
	"strconv"
	"time"

	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/model"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/rivo/tview"
)

var contactColumns = []column{
	{title: "NOME", exp: 2},
	{title: "NÚMERO", exp: 1},
	{title: "MENSAGENS", align: tview.AlignRight},
	{title: "ÚLTIMA", align: tview.AlignRight},
}

// ContactsView lists everyone who has messaged the bot.
type ContactsView struct {
	*tview.Table
	theme   *ui.Theme
	filter  string
	visible []model.Contact
}

// NewContactsView creates the contacts page.
func NewContactsView(theme *ui.Theme) *ContactsView {
	return &ContactsView{Table: newTable(theme, " Contatos "), theme: theme}
}

// Name implements ui.Component.
func (v *ContactsView) Name() string { return "Contatos" }

// SetFilter narrows the list to contacts whose name or number contains f.
func (v *ContactsView) SetFilter(f string) {
	v.filter = f
}

// Filter returns the active filter.
func (v *ContactsView) Filter() string { return v.filter }

// Render redraws the page from s.
func (v *ContactsView) Render(s dashboard.State) {
	v.visible = v.visible[:0]
	for _, c := range s.Contacts {
		if v.filter == "" || containsFold(c.Name, v.filter) || containsFold(c.Number, v.filter) {
			v.visible = append(v.visible, c)
		}
	}

	v.Clear()
	setHeader(v.Table, v.theme, contactColumns)
	now := time.Now()
	for i, c := range v.visible {
		name := c.Name
		if name == "" {
			name = c.Number
		}
		color := v.theme.FgColor
		if c.Number == s.SelectedContact {
			color = v.theme.CounterColor
		}
		v.SetCell(i+1, 0, cell(name, color, contactColumns[0]))
		v.SetCell(i+1, 1, cell(c.Number, color, contactColumns[1]))
		v.SetCell(i+1, 2, cell(strconv.Itoa(c.MessageCount), color, contactColumns[2]))
		v.SetCell(i+1, 3, cell(formatWhen(c.LastMessageAt, 0, now), color, contactColumns[3]))
	}

	if v.filter != "" {
		v.SetTitle(fmt.Sprintf(" Contatos (%d/%d) filtro: %s ", len(v.visible), len(s.Contacts), tview.Escape(v.filter)))
	} else {
		v.SetTitle(fmt.Sprintf(" Contatos (%d) ", len(s.Contacts)))
	}
	clampSelection(v.Table, len(v.visible))
}

// Selected returns the number of the highlighted contact.
func (v *ContactsView) Selected() string {
	i := selectedIndex(v.Table, len(v.visible))
	if i < 0 {
		return ""
	}
	return v.visible[i].Number
}
