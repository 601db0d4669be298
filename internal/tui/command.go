package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/model"
	"github.com/matheus3301/wppbot/internal/notify"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// Dashboard is the part of the controller the terminal UI drives.
type Dashboard interface {
	Snapshot() dashboard.State
	Changes() <-chan struct{}
	Notices() *notify.Center

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	ToggleBot(ctx context.Context) error
	SetPrompt(prompt string)
	SetFirstContact(enabled bool, message string)
	SaveConfig(ctx context.Context) error
	UploadFile(ctx context.Context, path string) (model.MediaRef, error)
	RemoveMedia(index int) error

	AddRule(ctx context.Context, keyword, response string) (model.Rule, error)
	ToggleRule(ctx context.Context, id string) error
	DeleteRule(ctx context.Context, id string) error

	LoadContacts(ctx context.Context) error
	SelectContact(ctx context.Context, number string) error
	LoadMessages(ctx context.Context, from string) error
	LoadOrders(ctx context.Context) error
	LoadHelpRequests(ctx context.Context) error
	UpdateOrderStatus(ctx context.Context, orderID string, st model.OrderStatus) error
	AdvanceOrder(ctx context.Context, orderID string) error
	ApprovePix(ctx context.Context, orderID string) error
	DeleteOrder(ctx context.Context, orderID string) error
	ResolveHelpRequest(ctx context.Context, requestID string) error
	SetShowCompleted(show bool)
}

var _ Dashboard = (*dashboard.Controller)(nil)

// Effect is what the shell must do after a command ran.
type Effect int

const (
	EffectNone Effect = iota
	EffectQuit
	EffectHelp
	// EffectThread opens the selected contact's messages.
	EffectThread
)

var errUsage = errors.New("usage")

// ParseRule splits "keyword | response".
func ParseRule(args string) (keyword, response string, err error) {
	keyword, response, ok := strings.Cut(args, "|")
	keyword, response = strings.TrimSpace(keyword), strings.TrimSpace(response)
	if !ok || keyword == "" || response == "" {
		return "", "", fmt.Errorf("%w: :rule <palavra-chave> | <resposta>", errUsage)
	}
	return keyword, response, nil
}

// OrderCommand is a parsed ":order" invocation.
type OrderCommand struct {
	ID     string
	Verb   string
	Status model.OrderStatus
}

// ParseOrder parses "<id> advance|approve|delete" and "<id> status <status>".
func ParseOrder(args string) (OrderCommand, error) {
	fields := strings.Fields(args)
	usage := fmt.Errorf("%w: :order <id> advance|approve|delete|status <status>", errUsage)
	if len(fields) < 2 {
		return OrderCommand{}, usage
	}
	oc := OrderCommand{ID: fields[0], Verb: strings.ToLower(fields[1])}
	switch oc.Verb {
	case "advance", "approve", "delete":
		if len(fields) != 2 {
			return OrderCommand{}, usage
		}
	case "status":
		if len(fields) != 3 {
			return OrderCommand{}, usage
		}
		st, err := model.ParseOrderStatus(strings.ToLower(fields[2]))
		if err != nil {
			return OrderCommand{}, err
		}
		oc.Status = st
	default:
		return OrderCommand{}, usage
	}
	return oc, nil
}

// Execute runs cmd against d. Usage errors are reported as warnings; command
// failures were already reported by the controller.
func Execute(ctx context.Context, d Dashboard, cmd Command) (Effect, error) {
	eff, err := execute(ctx, d, cmd)
	if errors.Is(err, errUsage) || errors.Is(err, model.ErrInvalidStatus) {
		d.Notices().Warn(err.Error())
	}
	return eff, err
}

func execute(ctx context.Context, d Dashboard, cmd Command) (Effect, error) {
	switch cmd.Name {
	case "q", "quit":
		return EffectQuit, nil
	case "help", "?":
		return EffectHelp, nil
	case "connect":
		return EffectNone, d.Connect(ctx)
	case "disconnect":
		return EffectNone, d.Disconnect(ctx)
	case "bot":
		return EffectNone, d.ToggleBot(ctx)
	case "save":
		return EffectNone, d.SaveConfig(ctx)
	case "prompt":
		if cmd.Args == "" {
			return EffectNone, fmt.Errorf("%w: :prompt <texto>", errUsage)
		}
		d.SetPrompt(cmd.Args)
		return EffectNone, nil
	case "greeting":
		fc := d.Snapshot().Config.FirstContact
		switch strings.ToLower(cmd.Args) {
		case "":
			return EffectNone, fmt.Errorf("%w: :greeting <texto>|on|off", errUsage)
		case "on":
			d.SetFirstContact(true, fc.Message)
		case "off":
			d.SetFirstContact(false, fc.Message)
		default:
			d.SetFirstContact(fc.Enabled, cmd.Args)
		}
		return EffectNone, nil
	case "upload":
		if cmd.Args == "" {
			return EffectNone, fmt.Errorf("%w: :upload <arquivo>", errUsage)
		}
		_, err := d.UploadFile(ctx, cmd.Args)
		return EffectNone, err
	case "rule":
		kw, resp, err := ParseRule(cmd.Args)
		if err != nil {
			return EffectNone, err
		}
		_, err = d.AddRule(ctx, kw, resp)
		return EffectNone, err
	case "contact":
		if cmd.Args == "" {
			return EffectNone, fmt.Errorf("%w: :contact <número>", errUsage)
		}
		if err := d.SelectContact(ctx, model.NormalizeNumber(cmd.Args)); err != nil {
			return EffectNone, err
		}
		return EffectThread, nil
	case "order":
		oc, err := ParseOrder(cmd.Args)
		if err != nil {
			return EffectNone, err
		}
		switch oc.Verb {
		case "advance":
			return EffectNone, d.AdvanceOrder(ctx, oc.ID)
		case "approve":
			return EffectNone, d.ApprovePix(ctx, oc.ID)
		case "delete":
			return EffectNone, d.DeleteOrder(ctx, oc.ID)
		default:
			return EffectNone, d.UpdateOrderStatus(ctx, oc.ID, oc.Status)
		}
	case "resolve":
		if cmd.Args == "" {
			return EffectNone, fmt.Errorf("%w: :resolve <id>", errUsage)
		}
		return EffectNone, d.ResolveHelpRequest(ctx, cmd.Args)
	case "completed":
		d.SetShowCompleted(!d.Snapshot().ShowCompleted)
		return EffectNone, nil
	case "reload":
		return EffectNone, errors.Join(d.LoadContacts(ctx), d.LoadOrders(ctx), d.LoadHelpRequests(ctx))
	default:
		return EffectNone, fmt.Errorf("%w: comando desconhecido %q", errUsage, cmd.Name)
	}
}
