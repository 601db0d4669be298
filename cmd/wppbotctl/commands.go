package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/model"
	"github.com/matheus3301/wppbot/internal/status"
	"github.com/mdp/qrterminal/v3"
)

// usageError reports a malformed command line.
type usageError struct{ text string }

func (e *usageError) Error() string { return "usage: " + e.text }

func usage(text string) error { return &usageError{text: text} }

var errPairingEnded = errors.New("pairing ended without a connection")

// runner executes one command against a passive controller.
type runner struct {
	ctrl     *dashboard.Controller
	mediaURL string
	json     bool
	out      io.Writer
}

func (r *runner) run(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "status":
		return r.status(ctx)
	case "connect":
		return r.connect(ctx)
	case "disconnect":
		return r.ctrl.Disconnect(ctx)
	case "bot":
		return r.bot(ctx, rest)
	case "contacts":
		return r.contacts(ctx)
	case "messages":
		return r.messages(ctx, rest)
	case "orders":
		return r.orders(ctx, rest)
	case "order":
		return r.order(ctx, rest)
	case "help":
		return r.help(ctx, rest)
	case "rules":
		return r.rules(ctx, rest)
	case "config":
		return r.config(ctx, rest)
	case "media":
		return r.media(ctx, rest)
	default:
		return usage(fmt.Sprintf("<command>: unknown command %q", cmd))
	}
}

func (r *runner) status(ctx context.Context) error {
	if err := r.ctrl.RefreshStatus(ctx); err != nil {
		return err
	}
	s := r.ctrl.Snapshot()
	if r.json {
		return r.outputJSON(map[string]any{
			"user":          s.UserID,
			"phase":         s.Phase,
			"connected":     s.Status.Connected,
			"botEnabled":    s.Status.BotEnabled,
			"messagesCount": s.Status.MessagesCount,
			"contactsCount": s.Status.ContactsCount,
		})
	}
	r.printf("User:      %s\n", s.UserID)
	r.printf("Status:    %s\n", s.Phase.Label())
	r.printf("Bot:       %s\n", onOff(s.Status.BotEnabled))
	r.printf("Messages:  %d\n", s.Status.MessagesCount)
	r.printf("Contacts:  %d\n", s.Status.ContactsCount)
	return nil
}

// connect starts a session and prints each new QR code until the phone
// pairs or the pairing task gives up.
func (r *runner) connect(ctx context.Context) error {
	if err := r.ctrl.RefreshStatus(ctx); err != nil {
		return err
	}
	if r.ctrl.Snapshot().Status.Connected {
		r.printf("Already connected.\n")
		return nil
	}
	if err := r.ctrl.Connect(ctx); err != nil {
		return err
	}

	shown := ""
	for {
		s := r.ctrl.Snapshot()
		if s.PairingCode != "" && s.PairingCode != shown {
			shown = s.PairingCode
			r.printf("\nScan with WhatsApp > Linked devices > Link a device:\n\n")
			qrterminal.GenerateHalfBlock(s.PairingCode, qrterminal.L, r.out)
		}
		switch {
		case s.Phase == status.Connected:
			r.printf("Connected.\n")
			return nil
		case s.Phase != status.Pairing && !r.ctrl.PairingActive():
			return errPairingEnded
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.ctrl.Changes():
		case <-time.After(time.Second):
		}
	}
}

func (r *runner) bot(ctx context.Context, args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return usage("bot on|off")
	}
	if err := r.ctrl.RefreshStatus(ctx); err != nil {
		return err
	}
	want := args[0] == "on"
	if r.ctrl.Snapshot().Status.BotEnabled == want {
		r.printf("Bot already %s.\n", args[0])
		return nil
	}
	return r.ctrl.ToggleBot(ctx)
}

func (r *runner) contacts(ctx context.Context) error {
	if err := r.ctrl.LoadContacts(ctx); err != nil {
		return err
	}
	contacts := r.ctrl.Snapshot().Contacts
	if r.json {
		return r.outputJSON(contacts)
	}
	if len(contacts) == 0 {
		r.printf("No contacts.\n")
		return nil
	}
	for _, c := range contacts {
		r.printf("%-16s %-28s %5d  %s\n", c.Number, c.Name, c.MessageCount, c.LastMessageAt)
	}
	return nil
}

func (r *runner) messages(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("messages <number>")
	}
	if err := r.ctrl.SelectContact(ctx, args[0]); err != nil {
		return err
	}
	msgs := r.ctrl.Snapshot().Messages
	if r.json {
		return r.outputJSON(msgs)
	}
	for _, m := range msgs {
		sender := m.FromName
		if sender == "" {
			sender = m.From
		}
		when := m.Date
		if m.Timestamp > 0 {
			when = time.Unix(m.Timestamp, 0).Format("02/01 15:04")
		}
		r.printf("[%s] %s: %s\n", when, sender, m.Body)
	}
	return nil
}

// connected refreshes the status so connection-gated commands can run.
func (r *runner) connected(ctx context.Context) error {
	return r.ctrl.RefreshStatus(ctx)
}

func (r *runner) orders(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("orders", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	completed := fs.Bool("completed", false, "show delivered orders")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return usage("orders [--completed]")
	}
	if err := r.connected(ctx); err != nil {
		return err
	}
	if err := r.ctrl.LoadOrders(ctx); err != nil {
		return err
	}
	all := r.ctrl.Snapshot().Orders
	orders := dashboard.DisplayOrders(all, *completed)
	if r.json {
		return r.outputJSON(orders)
	}
	r.printf("Pending: %d  Delivered: %d  Revenue: %s\n\n",
		dashboard.PendingCount(all), dashboard.CompletedCount(all), model.FormatPrice(dashboard.TotalRevenue(all)))
	for _, o := range orders {
		payment := o.PaymentMethod
		if o.AwaitingPix() {
			payment += " (awaiting approval)"
		}
		r.printf("%-10s %-12s %-20s %12s  %s\n", o.ID, o.Status.Label(), o.ContactName, model.FormatPrice(o.Total), payment)
	}
	return nil
}

func (r *runner) order(ctx context.Context, args []string) error {
	const text = "order status <id> <status> | order advance|approve|delete <id>"
	if len(args) < 2 {
		return usage(text)
	}
	if err := r.connected(ctx); err != nil {
		return err
	}
	if err := r.ctrl.LoadOrders(ctx); err != nil {
		return err
	}
	verb, id := args[0], args[1]
	switch {
	case verb == "status" && len(args) == 3:
		st, err := model.ParseOrderStatus(args[2])
		if err != nil {
			return err
		}
		return r.ctrl.UpdateOrderStatus(ctx, id, st)
	case verb == "advance" && len(args) == 2:
		return r.ctrl.AdvanceOrder(ctx, id)
	case verb == "approve" && len(args) == 2:
		return r.ctrl.ApprovePix(ctx, id)
	case verb == "delete" && len(args) == 2:
		return r.ctrl.DeleteOrder(ctx, id)
	default:
		return usage(text)
	}
}

func (r *runner) help(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("help list|resolve <id>")
	}
	if err := r.connected(ctx); err != nil {
		return err
	}
	switch {
	case args[0] == "list" && len(args) == 1:
		if err := r.ctrl.LoadHelpRequests(ctx); err != nil {
			return err
		}
		reqs := dashboard.UnresolvedHelp(r.ctrl.Snapshot().HelpRequests)
		if r.json {
			return r.outputJSON(reqs)
		}
		if len(reqs) == 0 {
			r.printf("No open help requests.\n")
		}
		for _, h := range reqs {
			r.printf("%-10s %-16s %-20s %s\n", h.ID, h.ContactNumber, h.ContactName, h.Reason)
		}
		return nil
	case args[0] == "resolve" && len(args) == 2:
		return r.ctrl.ResolveHelpRequest(ctx, args[1])
	default:
		return usage("help list|resolve <id>")
	}
}

func (r *runner) rules(ctx context.Context, args []string) error {
	const text = "rules list | rules add <keyword> <response> | rules toggle|delete <id>"
	if len(args) == 0 {
		return usage(text)
	}
	switch {
	case args[0] == "list" && len(args) == 1:
		rules := r.ctrl.Snapshot().Rules
		if r.json {
			return r.outputJSON(rules)
		}
		if len(rules) == 0 {
			r.printf("No rules.\n")
		}
		for _, rule := range rules {
			r.printf("%-14s %-4s %-20s %s\n", rule.ID, onOff(rule.Active), rule.Keyword, rule.Response)
		}
		return nil
	case args[0] == "add" && len(args) >= 3:
		rule, err := r.ctrl.AddRule(ctx, args[1], strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		if r.json {
			return r.outputJSON(rule)
		}
		r.printf("Rule %s added.\n", rule.ID)
		return nil
	case args[0] == "toggle" && len(args) == 2:
		return r.ctrl.ToggleRule(ctx, args[1])
	case args[0] == "delete" && len(args) == 2:
		return r.ctrl.DeleteRule(ctx, args[1])
	default:
		return usage(text)
	}
}

func (r *runner) config(ctx context.Context, args []string) error {
	switch {
	case len(args) == 1 && args[0] == "show":
		s := r.ctrl.Snapshot()
		if r.json {
			return r.outputJSON(s.Config)
		}
		if !s.ConfigLoaded {
			r.printf("(no saved config, showing defaults)\n")
		}
		fc := s.Config.FirstContact
		r.printf("Bot:            %s\n", onOff(s.Config.BotEnabled))
		r.printf("Prompt:         %s\n", s.Config.BotPrompt)
		r.printf("First contact:  %s\n", onOff(fc.Enabled))
		r.printf("Greeting:       %s\n", fc.Message)
		for i, m := range fc.Media {
			r.printf("Media %d:        %s (%s) %s\n", i+1, m.Filename, m.MimeType, m.URL)
		}
		return nil
	case len(args) >= 2 && args[0] == "prompt":
		r.ctrl.SetPrompt(strings.Join(args[1:], " "))
		return r.ctrl.SaveConfig(ctx)
	default:
		return usage("config show | config prompt <text>")
	}
}

func (r *runner) media(ctx context.Context, args []string) error {
	switch {
	case len(args) == 2 && args[0] == "upload":
		ref, err := r.ctrl.UploadFile(ctx, args[1])
		if err != nil {
			return err
		}
		if err := r.ctrl.SaveConfig(ctx); err != nil {
			return err
		}
		if r.json {
			return r.outputJSON(ref)
		}
		r.printf("Uploaded %s: %s\n", ref.Filename, ref.URL)
		return nil
	case len(args) == 1 && args[0] == "serve":
		r.printf("Serving media from %s. Press Ctrl-C to stop.\n", r.mediaURL)
		<-ctx.Done()
		return nil
	default:
		return usage("media upload <file> | media serve")
	}
}

func (r *runner) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

func (r *runner) outputJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
