package views

import (
	"fmt"

	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/model"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/rivo/tview"
)

var ruleColumns = []column{
	{title: "PALAVRA-CHAVE", exp: 1},
	{title: "RESPOSTA", exp: 3},
	{title: "ATIVA", align: tview.AlignCenter},
}

// RulesView lists the keyword auto-reply rules.
type RulesView struct {
	*tview.Table
	theme *ui.Theme
	rules []model.Rule
}

// NewRulesView creates the rules page.
func NewRulesView(theme *ui.Theme) *RulesView {
	return &RulesView{Table: newTable(theme, " Regras "), theme: theme}
}

// Name implements ui.Component.
func (v *RulesView) Name() string { return "Regras" }

// Render redraws the page from s.
func (v *RulesView) Render(s dashboard.State) {
	v.rules = s.Rules
	v.Clear()
	setHeader(v.Table, v.theme, ruleColumns)
	for i, r := range s.Rules {
		active, color := "não", v.theme.MutedColor
		if r.Active {
			active, color = "sim", v.theme.OkColor
		}
		v.SetCell(i+1, 0, cell(r.Keyword, v.theme.FgColor, ruleColumns[0]))
		v.SetCell(i+1, 1, cell(truncate(r.Response, 80), v.theme.FgColor, ruleColumns[1]))
		v.SetCell(i+1, 2, cell(active, color, ruleColumns[2]))
	}
	title := fmt.Sprintf(" Regras (%d) ", len(s.Rules))
	if s.PendingWrites > 0 {
		title = fmt.Sprintf(" Regras (%d) · salvando %d ", len(s.Rules), s.PendingWrites)
	}
	v.SetTitle(title)
	clampSelection(v.Table, len(s.Rules))
}

// Selected returns the highlighted rule.
func (v *RulesView) Selected() (model.Rule, bool) {
	i := selectedIndex(v.Table, len(v.rules))
	if i < 0 {
		return model.Rule{}, false
	}
	return v.rules[i], true
}
