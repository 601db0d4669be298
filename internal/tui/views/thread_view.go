package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/rivo/tview"
)

// ThreadView shows the messages exchanged with the selected contact.
type ThreadView struct {
	*tview.TextView
	theme *ui.Theme
	shown string
	count int
}

// NewThreadView creates the message thread page.
func NewThreadView(theme *ui.Theme) *ThreadView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Mensagens ")
	tv.SetTitleColor(theme.TitleColor)
	return &ThreadView{TextView: tv, theme: theme}
}

// Name implements ui.Component.
func (v *ThreadView) Name() string { return "Mensagens" }

// Render redraws the thread. The view only scrolls to the end when the
// contact or the number of messages changed.
func (v *ThreadView) Render(s dashboard.State) {
	name := s.SelectedContact
	for _, c := range s.Contacts {
		if c.Number == s.SelectedContact && c.Name != "" {
			name = c.Name
		}
	}
	v.SetTitle(fmt.Sprintf(" %s ", tview.Escape(name)))

	changed := s.SelectedContact != v.shown || len(s.Messages) != v.count
	v.shown, v.count = s.SelectedContact, len(s.Messages)
	if !changed {
		return
	}

	v.Clear()
	if len(s.Messages) == 0 {
		_, _ = fmt.Fprintf(v, "[%s]Nenhuma mensagem.[-]", ui.Tag(v.theme.MutedColor))
		return
	}
	now := time.Now()
	for _, m := range s.Messages {
		sender := m.FromName
		if sender == "" {
			sender = m.From
		}
		_, _ = fmt.Fprintf(v, "[%s::b]%s[-:-:-] [%s]%s[-]\n%s\n\n",
			ui.Tag(v.theme.CounterColor), tview.Escape(sanitize(sender)),
			ui.Tag(v.theme.MutedColor), formatWhen(m.Date, m.Timestamp*1000, now),
			tview.Escape(m.Body))
	}
	v.ScrollToEnd()
}
