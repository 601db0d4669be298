package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/model"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/rivo/tview"
)

var requestColumns = []column{
	{title: "CLIENTE", exp: 1},
	{title: "NÚMERO", exp: 1},
	{title: "MOTIVO", exp: 3},
	{title: "PEDIDO EM", align: tview.AlignRight},
}

// RequestsView lists contacts waiting for a human.
type RequestsView struct {
	*tview.Table
	theme   *ui.Theme
	visible []model.HelpRequest
}

// NewRequestsView creates the help requests page.
func NewRequestsView(theme *ui.Theme) *RequestsView {
	return &RequestsView{Table: newTable(theme, " Atendimento humano "), theme: theme}
}

// Name implements ui.Component.
func (v *RequestsView) Name() string { return "Atendimento" }

// Render redraws the page from s. Only unresolved requests are listed.
func (v *RequestsView) Render(s dashboard.State) {
	v.visible = dashboard.UnresolvedHelp(s.HelpRequests)
	v.Clear()
	setHeader(v.Table, v.theme, requestColumns)
	now := time.Now()
	for i, r := range v.visible {
		color := v.theme.FgColor
		if s.ResolveBusy[r.ID] {
			color = v.theme.MutedColor
		}
		v.SetCell(i+1, 0, cell(contactLabel(r.ContactName, r.ContactNumber), color, requestColumns[0]))
		v.SetCell(i+1, 1, cell(r.ContactNumber, color, requestColumns[1]))
		v.SetCell(i+1, 2, cell(truncate(r.Reason, 80), color, requestColumns[2]))
		v.SetCell(i+1, 3, cell(formatWhen(r.RequestedAt, 0, now), color, requestColumns[3]))
	}
	v.SetTitle(fmt.Sprintf(" Atendimento humano (%d) ", len(v.visible)))
	clampSelection(v.Table, len(v.visible))
}

// Selected returns the id of the highlighted request.
func (v *RequestsView) Selected() string {
	i := selectedIndex(v.Table, len(v.visible))
	if i < 0 {
		return ""
	}
	return v.visible[i].ID
}
