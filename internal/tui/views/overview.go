package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/model"
	"github.com/matheus3301/wppbot/internal/status"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/rivo/tview"
)

// Overview shows the connection, the bot switch, order counters and, while
// pairing, the QR code to scan.
type Overview struct {
	*tview.TextView
	theme *ui.Theme
	qr    string
	art   string
}

// NewOverview creates the overview page.
func NewOverview(theme *ui.Theme) *Overview {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" WhatsApp ")
	tv.SetTitleColor(theme.TitleColor)
	return &Overview{TextView: tv, theme: theme}
}

// Name implements ui.Component.
func (o *Overview) Name() string { return "WhatsApp" }

// Render redraws the page from s.
func (o *Overview) Render(s dashboard.State) {
	o.Clear()
	var sb strings.Builder
	ok, pending, muted := ui.Tag(o.theme.OkColor), ui.Tag(o.theme.PendingColor), ui.Tag(o.theme.MutedColor)

	switch s.Phase {
	case status.Connected:
		fmt.Fprintf(&sb, "\n[%s::b]● WhatsApp conectado[-:-:-]\n\n", ok)
	case status.Pairing:
		fmt.Fprintf(&sb, "\n[%s::b]◌ Aguardando leitura do QR Code[-:-:-]\n\n", pending)
	default:
		fmt.Fprintf(&sb, "\n[%s::b]○ WhatsApp desconectado[-:-:-]\n\n", muted)
	}

	if s.UserID == "" {
		sb.WriteString("Nenhum usuário selecionado.\n")
		_, _ = fmt.Fprint(o, sb.String())
		return
	}

	if s.Pairing() {
		sb.WriteString(o.pairingBlock(s.PairingCode))
		_, _ = fmt.Fprint(o, sb.String())
		return
	}

	bot := fmt.Sprintf("[%s]desativado[-]", muted)
	if s.Status.BotEnabled {
		bot = fmt.Sprintf("[%s]ativo[-]", ok)
	}
	fmt.Fprintf(&sb, "Bot: %s\n\n", bot)
	fmt.Fprintf(&sb, "Mensagens: [::b]%d[-:-:-]    Contatos: [::b]%d[-:-:-]\n\n", s.Status.MessagesCount, s.Status.ContactsCount)

	if s.Status.Connected {
		fmt.Fprintf(&sb, "Pedidos pendentes: [%s::b]%d[-:-:-]    Entregues: [::b]%d[-:-:-]    Faturamento: [::b]%s[-:-:-]\n",
			pending, dashboard.PendingCount(s.Orders), dashboard.CompletedCount(s.Orders), model.FormatPrice(dashboard.TotalRevenue(s.Orders)))
		if n := len(dashboard.UnresolvedHelp(s.HelpRequests)); n > 0 {
			fmt.Fprintf(&sb, "\n[%s::b]%d solicitação(ões) de atendimento humano aguardando[-:-:-]\n", pending, n)
		}
	} else {
		fmt.Fprintf(&sb, "[%s]Pressione c para conectar e gerar o QR Code.[-]\n", muted)
	}
	_, _ = fmt.Fprint(o, sb.String())
}

func (o *Overview) pairingBlock(code string) string {
	if code == "" {
		return "Gerando QR Code...\n"
	}
	if code != o.qr {
		art, err := renderQR(code)
		if err != nil {
			art = fmt.Sprintf("(falha ao gerar QR Code: %v)\n", err)
		}
		o.qr, o.art = code, art
	}
	return "Abra o WhatsApp > Aparelhos conectados > Conectar aparelho\n\n" + o.art
}
