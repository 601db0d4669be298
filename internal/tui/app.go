package tui

import (
	"context"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/tui/keys"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/matheus3301/wppbot/internal/tui/views"
	"github.com/rivo/tview"
)

// Page names, also shown in the breadcrumbs.
const (
	pageOverview = "whatsapp"
	pageConfig   = "config"
	pageRules    = "regras"
	pageContacts = "contatos"
	pageThread   = "mensagens"
	pageOrders   = "pedidos"
	pageRequests = "atendimento"
	pageHelp     = "ajuda"
)

const promptHeight = 3

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	dash     Dashboard
	theme    *ui.Theme
	registry *keys.Registry

	main   *tview.Flex
	pages  *ui.Pages
	info   *ui.Info
	menu   *ui.Menu
	crumbs *ui.Crumbs
	prompt *ui.Prompt
	flash  *ui.FlashBar

	overview *views.Overview
	config   *views.ConfigView
	rules    *views.RulesView
	contacts *views.ContactsView
	thread   *views.ThreadView
	orders   *views.OrdersView
	requests *views.RequestsView
	help     *views.HelpView

	// onInput receives the text of a PromptInput.
	onInput func(text string)

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(d Dashboard) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		dash:     d,
		theme:    theme,
		registry: keys.NewRegistry(),
		pages:    ui.NewPages(),
		info:     ui.NewInfo(theme),
		menu:     ui.NewMenu(theme),
		crumbs:   ui.NewCrumbs(theme),
		prompt:   ui.NewPrompt(theme),
		flash:    ui.NewFlashBar(theme),
		overview: views.NewOverview(theme),
		config:   views.NewConfigView(theme),
		rules:    views.NewRulesView(theme),
		contacts: views.NewContactsView(theme),
		thread:   views.NewThreadView(theme),
		orders:   views.NewOrdersView(theme),
		requests: views.NewRequestsView(theme),
		help:     views.NewHelpView(theme),
		ctx:      ctx,
		cancel:   cancel,
	}

	a.setupBindings()
	a.setupLayout()
	return a
}

// do runs fn off the UI goroutine. Failures are already posted as notices.
func (a *App) do(fn func(ctx context.Context) error) {
	go func() { _ = fn(a.ctx) }()
}

func (a *App) setupBindings() {
	r := a.registry
	sections := []struct {
		page string
		key  rune
	}{
		{pageOverview, '1'}, {pageConfig, '2'}, {pageRules, '3'},
		{pageContacts, '4'}, {pageOrders, '5'}, {pageRequests, '6'},
	}
	for _, s := range sections {
		page := s.page
		r.AddGlobal(&keys.Action{
			Key: tcell.KeyRune, Rune: s.key, Label: string(s.key), Description: page,
			Visible: true, Numeric: true,
			Handler: func() { a.showSection(page) },
		})
	}
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: 'c', Label: "c", Description: "conectar", Visible: true,
		Handler: func() { a.do(a.dash.Connect) }})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: 'x', Label: "x", Description: "desconectar", Visible: true,
		Handler: func() { a.do(a.dash.Disconnect) }})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: 'b', Label: "b", Description: "liga/desliga bot", Visible: true,
		Handler: func() { a.do(a.dash.ToggleBot) }})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: ':', Label: ":", Description: "comando", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptCommand, "", "") }})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: '?', Label: "?", Description: "ajuda", Visible: true,
		Handler: func() { a.showSection(pageHelp) }})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: 'q', Label: "q", Description: "sair", Visible: true,
		Handler: a.Stop})

	// Config
	r.AddPage(pageConfig, &keys.Action{Key: tcell.KeyRune, Rune: 'p', Label: "p", Description: "editar prompt", Visible: true,
		Handler: func() {
			a.ask("Prompt do bot", a.dash.Snapshot().Config.BotPrompt, a.dash.SetPrompt)
		}})
	r.AddPage(pageConfig, &keys.Action{Key: tcell.KeyRune, Rune: 'g', Label: "g", Description: "editar saudação", Visible: true,
		Handler: func() {
			fc := a.dash.Snapshot().Config.FirstContact
			a.ask("Mensagem de primeiro contato", fc.Message, func(text string) {
				a.dash.SetFirstContact(fc.Enabled, text)
			})
		}})
	r.AddPage(pageConfig, &keys.Action{Key: tcell.KeyRune, Rune: 'f', Label: "f", Description: "liga/desliga saudação", Visible: true,
		Handler: func() {
			fc := a.dash.Snapshot().Config.FirstContact
			a.dash.SetFirstContact(!fc.Enabled, fc.Message)
		}})
	r.AddPage(pageConfig, &keys.Action{Key: tcell.KeyRune, Rune: 'u', Label: "u", Description: "anexar mídia", Visible: true,
		Handler: func() {
			a.ask("Caminho do arquivo", "", func(path string) {
				a.do(func(ctx context.Context) error {
					_, err := a.dash.UploadFile(ctx, strings.TrimSpace(path))
					return err
				})
			})
		}})
	r.AddPage(pageConfig, &keys.Action{Key: tcell.KeyRune, Rune: 'd', Label: "d", Description: "remover mídia", Visible: true,
		Handler: func() { _ = a.dash.RemoveMedia(a.config.SelectedMedia()) }})
	r.AddPage(pageConfig, &keys.Action{Key: tcell.KeyRune, Rune: 's', Label: "s", Description: "salvar", Visible: true,
		Handler: func() { a.do(a.dash.SaveConfig) }})

	// Rules
	r.AddPage(pageRules, &keys.Action{Key: tcell.KeyRune, Rune: 'a', Label: "a", Description: "nova regra", Visible: true,
		Handler: func() {
			a.ask("palavra-chave | resposta", "", func(text string) {
				kw, resp, err := ParseRule(text)
				if err != nil {
					a.dash.Notices().Warn("Preencha todos os campos")
					return
				}
				a.do(func(ctx context.Context) error {
					_, err := a.dash.AddRule(ctx, kw, resp)
					return err
				})
			})
		}})
	r.AddPage(pageRules, &keys.Action{Key: tcell.KeyRune, Rune: ' ', Label: "espaço", Description: "ativar/desativar", Visible: true,
		Handler: func() {
			if rule, ok := a.rules.Selected(); ok {
				a.do(func(ctx context.Context) error { return a.dash.ToggleRule(ctx, rule.ID) })
			}
		}})
	r.AddPage(pageRules, &keys.Action{Key: tcell.KeyRune, Rune: 'd', Label: "d", Description: "excluir regra", Visible: true,
		Handler: func() {
			if rule, ok := a.rules.Selected(); ok {
				a.do(func(ctx context.Context) error { return a.dash.DeleteRule(ctx, rule.ID) })
			}
		}})

	// Contacts and thread
	r.AddPage(pageContacts, &keys.Action{Key: tcell.KeyEnter, Label: "Enter", Description: "abrir conversa", Visible: true,
		Handler: func() {
			if number := a.contacts.Selected(); number != "" {
				a.openThread(number)
			}
		}})
	r.AddPage(pageContacts, &keys.Action{Key: tcell.KeyRune, Rune: '/', Label: "/", Description: "filtrar", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptFilter, "", a.contacts.Filter()) }})
	r.AddPage(pageContacts, &keys.Action{Key: tcell.KeyRune, Rune: 'r', Label: "r", Description: "recarregar", Visible: true,
		Handler: func() { a.do(a.dash.LoadContacts) }})
	r.AddPage(pageThread, &keys.Action{Key: tcell.KeyRune, Rune: 'r', Label: "r", Description: "recarregar", Visible: true,
		Handler: func() {
			from := a.dash.Snapshot().SelectedContact
			a.do(func(ctx context.Context) error { return a.dash.LoadMessages(ctx, from) })
		}})

	// Orders
	r.AddPage(pageOrders, &keys.Action{Key: tcell.KeyEnter, Label: "Enter", Description: "avançar status", Visible: true,
		Handler: func() {
			if o, ok := a.orders.Selected(); ok {
				a.do(func(ctx context.Context) error { return a.dash.AdvanceOrder(ctx, o.ID) })
			}
		}})
	r.AddPage(pageOrders, &keys.Action{Key: tcell.KeyRune, Rune: 'p', Label: "p", Description: "aprovar PIX", Visible: true,
		Handler: func() {
			if o, ok := a.orders.Selected(); ok && o.AwaitingPix() {
				a.do(func(ctx context.Context) error { return a.dash.ApprovePix(ctx, o.ID) })
			}
		}})
	r.AddPage(pageOrders, &keys.Action{Key: tcell.KeyRune, Rune: 'D', Label: "D", Description: "excluir pedido", Visible: true,
		Handler: func() {
			o, ok := a.orders.Selected()
			if !ok {
				return
			}
			a.ask("Excluir pedido #"+o.ID+"? (s/n)", "", func(answer string) {
				if strings.EqualFold(strings.TrimSpace(answer), "s") {
					a.do(func(ctx context.Context) error { return a.dash.DeleteOrder(ctx, o.ID) })
				}
			})
		}})
	r.AddPage(pageOrders, &keys.Action{Key: tcell.KeyRune, Rune: 't', Label: "t", Description: "ativos/entregues", Visible: true,
		Handler: func() { a.dash.SetShowCompleted(!a.dash.Snapshot().ShowCompleted) }})
	r.AddPage(pageOrders, &keys.Action{Key: tcell.KeyRune, Rune: 'r', Label: "r", Description: "recarregar", Visible: true,
		Handler: func() { a.do(a.dash.LoadOrders) }})

	// Help requests
	r.AddPage(pageRequests, &keys.Action{Key: tcell.KeyEnter, Label: "Enter", Description: "resolver", Visible: true,
		Handler: func() {
			if id := a.requests.Selected(); id != "" {
				a.do(func(ctx context.Context) error { return a.dash.ResolveHelpRequest(ctx, id) })
			}
		}})
	r.AddPage(pageRequests, &keys.Action{Key: tcell.KeyRune, Rune: 'r', Label: "r", Description: "recarregar", Visible: true,
		Handler: func() { a.do(a.dash.LoadHelpRequests) }})
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageOverview, a.overview, true, false)
	a.pages.AddPage(pageConfig, a.config, true, false)
	a.pages.AddPage(pageRules, a.rules, true, false)
	a.pages.AddPage(pageContacts, a.contacts, true, false)
	a.pages.AddPage(pageThread, a.thread, true, false)
	a.pages.AddPage(pageOrders, a.orders, true, false)
	a.pages.AddPage(pageRequests, a.requests, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)
	a.pages.SetOnChange(func(path []string) {
		a.crumbs.Update(path)
		a.menu.Update(a.registry.Hints(a.pages.Current()))
	})

	header := tview.NewFlex().
		AddItem(a.info, 34, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(ui.NewLogo(a.theme), 24, 0, false)

	a.main = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flash, 1, 0, false)
	a.app.SetRoot(a.main, true)

	a.prompt.SetOnSubmit(a.submitPrompt)
	a.prompt.SetOnCancel(a.hidePrompt)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if a.prompt.HasFocus() {
			return event
		}
		if event.Key() == tcell.KeyEscape {
			if a.pages.Pop() {
				a.focusPage()
			} else if a.pages.CurrentSection() == pageHelp {
				a.showSection(pageOverview)
			}
			return nil
		}
		if a.registry.HandleEvent(a.pages.Current(), event) {
			return nil
		}
		return event
	})

	a.showSection(pageOverview)
}

func (a *App) showSection(page string) {
	a.pages.Section(page)
	a.focusPage()
}

func (a *App) focusPage() {
	switch a.pages.Current() {
	case pageOrders:
		a.app.SetFocus(a.orders.Table())
	default:
		_, item := a.pages.GetFrontPage()
		if item != nil {
			a.app.SetFocus(item)
		}
	}
}

func (a *App) openThread(number string) {
	a.pages.Push(pageThread)
	a.focusPage()
	a.do(func(ctx context.Context) error { return a.dash.SelectContact(ctx, number) })
}

// ask collects one line of text and hands it to fn.
func (a *App) ask(title, initial string, fn func(text string)) {
	a.onInput = fn
	a.showPrompt(ui.PromptInput, title, initial)
}

func (a *App) showPrompt(mode ui.PromptMode, title, initial string) {
	a.prompt.Activate(mode, title, initial)
	a.main.ResizeItem(a.prompt, promptHeight, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.onInput = nil
	a.main.ResizeItem(a.prompt, 0, 0)
	a.focusPage()
}

func (a *App) submitPrompt(mode ui.PromptMode, text string) {
	onInput := a.onInput
	a.hidePrompt()
	switch mode {
	case ui.PromptFilter:
		a.contacts.SetFilter(strings.TrimSpace(text))
		a.render()
	case ui.PromptInput:
		if onInput != nil && text != "" {
			onInput(text)
		}
	case ui.PromptCommand:
		a.runCommand(ParseCommand(text))
	}
}

func (a *App) runCommand(cmd Command) {
	if cmd.Name == "" {
		return
	}
	switch cmd.Name {
	case "q", "quit":
		a.Stop()
		return
	case "help", "?":
		a.showSection(pageHelp)
		return
	}
	go func() {
		eff, err := Execute(a.ctx, a.dash, cmd)
		if err != nil {
			return
		}
		switch eff {
		case EffectThread:
			a.app.QueueUpdateDraw(func() {
				if a.pages.Current() != pageThread {
					a.pages.Push(pageThread)
					a.focusPage()
				}
			})
		case EffectQuit:
			a.Stop()
		}
	}()
}

// render redraws every view from the current state.
func (a *App) render() {
	s := a.dash.Snapshot()
	a.info.Update(ui.InfoData{
		User:      s.UserID,
		Phase:     s.Phase.Label(),
		Connected: s.Status.Connected,
		Bot:       s.Status.BotEnabled,
		Messages:  s.Status.MessagesCount,
		Contacts:  s.Status.ContactsCount,
		Pending:   dashboard.PendingCount(s.Orders),
		Writes:    s.PendingWrites,
	})
	a.flash.Update(a.dash.Notices().Current())

	a.overview.Render(s)
	a.config.Render(s)
	a.rules.Render(s)
	a.contacts.Render(s)
	a.orders.Render(s)
	a.requests.Render(s)
	if s.SelectedContact != "" {
		a.thread.Render(s)
	}
}

// Run starts the TUI and redraws whenever the dashboard state or the notices change.
func (a *App) Run() error {
	go a.watch()
	a.render()
	return a.app.Run()
}

func (a *App) watch() {
	// The ticker expires stale notices.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.dash.Changes():
		case <-a.dash.Notices().Watch():
		case <-ticker.C:
		}
		a.app.QueueUpdateDraw(a.render)
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
