package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView is the key and command reference.
type HelpView struct {
	*tview.TextView
}

// NewHelpView creates the reference page.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Ajuda ")
	tv.SetTitleColor(theme.TitleColor)

	kc := ui.Tag(theme.MenuKeyColor)
	var sb strings.Builder
	section := func(title string, rows [][2]string) {
		fmt.Fprintf(&sb, "\n  [::b]%s[-:-:-]\n\n", title)
		for _, r := range rows {
			fmt.Fprintf(&sb, "  [%s]%-28s[-:-:-] %s\n", kc, tview.Escape(r[0]), r[1])
		}
	}
	section("Navegação", [][2]string{
		{"1-6", "WhatsApp, Config, Regras, Contatos, Pedidos, Atendimento"},
		{":", "modo comando"},
		{"Esc", "voltar / cancelar"},
		{"?", "esta ajuda"},
		{"q", "sair"},
	})
	section("Comandos", [][2]string{
		{":connect / :disconnect", "conectar ou desconectar o WhatsApp"},
		{":bot", "ativar ou desativar o bot"},
		{":prompt <texto>", "alterar o prompt do bot"},
		{":greeting <texto>", "alterar a mensagem de primeiro contato"},
		{":greeting on|off", "ativar ou desativar o primeiro contato"},
		{":upload <arquivo>", "anexar mídia ao primeiro contato"},
		{":save", "salvar configurações"},
		{":rule <chave> | <resposta>", "adicionar regra"},
		{":contact <número>", "abrir conversa"},
		{":order <id> advance|approve|delete", "agir sobre um pedido"},
		{":order <id> status <status>", "pending, preparing, ready, delivered"},
		{":resolve <id>", "resolver solicitação de atendimento"},
		{":completed", "alternar pedidos ativos/entregues"},
		{":reload", "recarregar contatos, pedidos e solicitações"},
		{":quit", "sair"},
	})
	_, _ = fmt.Fprint(tv, sb.String())
	return &HelpView{TextView: tv}
}

// Name implements ui.Component.
func (v *HelpView) Name() string { return "Ajuda" }
