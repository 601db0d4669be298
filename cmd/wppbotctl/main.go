package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matheus3301/wppbot/internal/app"
	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/lock"
	"github.com/matheus3301/wppbot/internal/notify"
	"go.uber.org/fx"
	"go.uber.org/zap/zapcore"
)

func main() {
	userFlag := flag.String("user", "", "user id (overrides config default_user)")
	configFlag := flag.String("config", "", "config file (default ~/.wppbot/config.toml)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	verboseFlag := flag.Bool("verbose", false, "log to stderr at debug level")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, userID, err := app.Load(*userFlag, *configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Only media commands open the media file, which the dashboard holds
	// while it runs.
	usesMedia := args[0] == "media"
	serve := usesMedia && len(args) > 1 && args[1] == "serve"
	params := app.Params{
		UserID:     userID,
		Config:     cfg,
		Passive:    true,
		SkipMedia:  !usesMedia,
		ServeMedia: serve,
		LogLevel:   zapcore.WarnLevel,
	}
	if usesMedia {
		params.Command = "wppbotctl " + args[0]
	}
	if *verboseFlag {
		params.Console = true
		params.LogLevel = zapcore.DebugLevel
	}

	var (
		ctrl *dashboard.Controller
		b    *bus.Bus
	)
	opts := []fx.Option{app.Module(params), fx.Populate(&ctrl, &b)}
	if *verboseFlag {
		opts = append(opts, app.WithZapLogger())
	} else {
		opts = append(opts, fx.NopLogger)
	}
	fxApp := fx.New(opts...)
	if err := fxApp.Err(); err != nil {
		exit(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, fxApp.StartTimeout())
	err = fxApp.Start(startCtx)
	cancel()
	if err != nil {
		exit(err)
	}

	events, unsub := b.Subscribe("notify.", 32)
	quit := make(chan struct{})
	printed := make(chan struct{})
	go printNotices(events, quit, printed)

	r := &runner{ctrl: ctrl, mediaURL: cfg.Media.PublicURL, json: *jsonFlag, out: os.Stdout}
	runErr := r.run(ctx, args)

	// Stopping flushes queued rule writes.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), fxApp.StopTimeout())
	if err := fxApp.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	stopCancel()
	unsub()
	close(quit)
	<-printed

	if runErr != nil {
		var usage *usageError
		if errors.As(runErr, &usage) {
			fmt.Fprintf(os.Stderr, "usage: wppbotctl %s\n", usage.text)
			os.Exit(2)
		}
		if !dashboard.IsValidation(runErr) {
			fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		}
		os.Exit(1)
	}
}

// printNotices writes notices to stderr until quit, then drains what is buffered.
func printNotices(events <-chan bus.Event, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	show := func(evt bus.Event) {
		if n, ok := evt.Payload.(notify.Notice); ok {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Level, n.Text)
		}
	}
	for {
		select {
		case evt := <-events:
			show(evt)
		case <-quit:
			for {
				select {
				case evt := <-events:
					show(evt)
				default:
					return
				}
			}
		}
	}
}

func exit(err error) {
	var held *lock.HeldError
	if errors.As(err, &held) {
		fmt.Fprintf(os.Stderr, "error: %v\n", held)
		os.Exit(2)
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: wppbotctl [--user <id>] [--config <file>] [--json] [--verbose] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                          Show connection status")
	fmt.Fprintln(os.Stderr, "  connect                         Connect and print the pairing QR code")
	fmt.Fprintln(os.Stderr, "  disconnect                      Disconnect the WhatsApp session")
	fmt.Fprintln(os.Stderr, "  bot on|off                      Enable or disable automatic replies")
	fmt.Fprintln(os.Stderr, "  contacts                        List contacts")
	fmt.Fprintln(os.Stderr, "  messages <number>               Show messages exchanged with a contact")
	fmt.Fprintln(os.Stderr, "  orders [--completed]            List active (or delivered) orders")
	fmt.Fprintln(os.Stderr, "  order status <id> <status>      Set an order status")
	fmt.Fprintln(os.Stderr, "  order advance|approve|delete <id>")
	fmt.Fprintln(os.Stderr, "  help list                       List open help requests")
	fmt.Fprintln(os.Stderr, "  help resolve <id>               Resolve a help request")
	fmt.Fprintln(os.Stderr, "  rules list                      List auto-reply rules")
	fmt.Fprintln(os.Stderr, "  rules add <keyword> <response>  Add a rule")
	fmt.Fprintln(os.Stderr, "  rules toggle|delete <id>        Toggle or delete a rule")
	fmt.Fprintln(os.Stderr, "  config show                     Show the bot config")
	fmt.Fprintln(os.Stderr, "  config prompt <text>            Replace the bot prompt")
	fmt.Fprintln(os.Stderr, "  media upload <file>             Attach media to the first-contact message")
	fmt.Fprintln(os.Stderr, "  media serve                     Serve stored media over HTTP")
}
