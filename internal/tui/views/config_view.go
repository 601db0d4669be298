package views

import (
	"fmt"
	"strconv"

	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/model"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/rivo/tview"
)

var mediaColumns = []column{
	{title: "#", align: tview.AlignRight},
	{title: "ARQUIVO", exp: 2},
	{title: "TIPO", exp: 1},
	{title: "ORIGEM", exp: 0},
}

// ConfigView shows the editable bot config: prompt, first-contact greeting
// and its media attachments.
type ConfigView struct {
	*tview.Flex
	theme   *ui.Theme
	summary *tview.TextView
	media   *tview.Table
	count   int
}

// NewConfigView creates the config page.
func NewConfigView(theme *ui.Theme) *ConfigView {
	summary := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	summary.SetBorder(true)
	summary.SetBorderColor(theme.BorderColor)
	summary.SetBackgroundColor(theme.BgColor)
	summary.SetTextColor(theme.FgColor)
	summary.SetTitle(" Configurações ")
	summary.SetTitleColor(theme.TitleColor)

	media := newTable(theme, " Mídias do primeiro contato ")

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(summary, 0, 2, false).
		AddItem(media, 0, 1, true)
	return &ConfigView{Flex: flex, theme: theme, summary: summary, media: media}
}

// Name implements ui.Component.
func (v *ConfigView) Name() string { return "Config" }

// Render redraws the page from s.
func (v *ConfigView) Render(s dashboard.State) {
	cfg := s.Config
	label := ui.Tag(v.theme.CounterColor)
	greeting := "desativada"
	if cfg.FirstContact.Enabled {
		greeting = "ativada"
	}
	loaded := ""
	if !s.ConfigLoaded {
		loaded = fmt.Sprintf("[%s](valores padrão, documento ainda não carregado)[-]\n\n", ui.Tag(v.theme.MutedColor))
	}

	v.summary.Clear()
	_, _ = fmt.Fprintf(v.summary,
		"%s[%s::b]Prompt do bot[-:-:-]\n%s\n\n[%s::b]Mensagem de primeiro contato[-:-:-] (%s)\n%s\n",
		loaded,
		label, tview.Escape(cfg.BotPrompt),
		label, greeting, tview.Escape(cfg.FirstContact.Message),
	)

	v.media.Clear()
	setHeader(v.media, v.theme, mediaColumns)
	for i, m := range cfg.FirstContact.Media {
		origin := "link"
		if m.Type == model.MediaInline {
			origin = "embutida"
		}
		name := m.Filename
		if name == "" {
			name = m.URL
		}
		v.media.SetCell(i+1, 0, cell(strconv.Itoa(i+1), v.theme.FgColor, mediaColumns[0]))
		v.media.SetCell(i+1, 1, cell(name, v.theme.FgColor, mediaColumns[1]))
		v.media.SetCell(i+1, 2, cell(m.MimeType, v.theme.FgColor, mediaColumns[2]))
		v.media.SetCell(i+1, 3, cell(origin, v.theme.FgColor, mediaColumns[3]))
	}
	v.count = len(cfg.FirstContact.Media)
	clampSelection(v.media, v.count)
}

// SelectedMedia returns the index of the highlighted attachment, or -1.
func (v *ConfigView) SelectedMedia() int {
	return selectedIndex(v.media, v.count)
}
