package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/wppbot/internal/app"
	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/lock"
	"github.com/matheus3301/wppbot/internal/tui"
	"go.uber.org/fx"
	"go.uber.org/zap/zapcore"
)

func main() {
	userFlag := flag.String("user", "", "user id (overrides config default_user)")
	configFlag := flag.String("config", "", "config file (default ~/.wppbot/config.toml)")
	debugFlag := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	cfg, userID, err := app.Load(*userFlag, *configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	level := zapcore.InfoLevel
	if *debugFlag {
		level = zapcore.DebugLevel
	}

	var ctrl *dashboard.Controller
	fxApp := fx.New(
		app.Module(app.Params{
			UserID:     userID,
			Config:     cfg,
			Command:    "wppbot",
			LogLevel:   level,
			ServeMedia: cfg.Features.FirstContactMedia,
		}),
		app.WithZapLogger(),
		fx.Populate(&ctrl),
	)
	if err := fxApp.Err(); err != nil {
		exitStartup(err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), fxApp.StartTimeout())
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		exitStartup(err)
	}

	runErr := tui.NewApp(ctrl).Run()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), fxApp.StopTimeout())
	defer stopCancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}

func exitStartup(err error) {
	var held *lock.HeldError
	if errors.As(err, &held) {
		fmt.Fprintf(os.Stderr, "error: %v\n", held)
		fmt.Fprintln(os.Stderr, "close the other dashboard or pick another --user")
		os.Exit(2)
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
