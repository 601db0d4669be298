package app

import (
	"context"
	"errors"

	"github.com/matheus3301/wppbot/internal/api"
	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/config"
	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/docstore"
	"github.com/matheus3301/wppbot/internal/lock"
	"github.com/matheus3301/wppbot/internal/logging"
	"github.com/matheus3301/wppbot/internal/media"
	"github.com/matheus3301/wppbot/internal/notify"
	"github.com/matheus3301/wppbot/internal/outbox"
	"github.com/matheus3301/wppbot/internal/profile"
	intsync "github.com/matheus3301/wppbot/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Params holds the resolved runtime settings passed to the fx module.
type Params struct {
	UserID string
	Config *config.Config
	// Command names the lock holder. Empty skips the profile lock.
	Command string
	// Console mirrors logs to stderr. Never set it for the TUI.
	Console  bool
	LogLevel zapcore.Level
	// Passive disables background polling; see dashboard.Options.
	Passive bool
	// ServeMedia starts the media HTTP server.
	ServeMedia bool
	// SkipMedia leaves the media file closed so another process can hold it.
	// Uploads are disabled.
	SkipMedia bool
}

// Module returns the fx module composing every component and its lifecycle hooks.
func Module(p Params) fx.Option {
	opts := []fx.Option{
		fx.Supply(p, p.Config),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideDocstore,
			provideMediaStore,
			provideClient,
			provideNotices,
			provideOutbox,
			provideController,
			provideProjector,
			provideEventLog,
		),
		fx.Invoke(registerLifecycle),
	}
	if p.ServeMedia {
		opts = append(opts,
			fx.Provide(provideMediaServer),
			fx.Invoke(registerMediaServer),
		)
	}
	return fx.Module("wppbot", opts...)
}

// WithZapLogger routes fx's own events to the application logger.
func WithZapLogger() fx.Option {
	return fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: l.Named("fx")}
	})
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := profile.EnsureDir(p.UserID); err != nil {
		return nil, err
	}
	return logging.New(profile.LogPath(p.UserID), p.UserID, logging.Options{
		Console: p.Console,
		Level:   p.LogLevel,
	})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if p.Command == "" {
		return nil, nil
	}
	logger.Info("acquiring profile lock", zap.String("command", p.Command))
	l, err := lock.Acquire(profile.Dir(p.UserID), p.Command)
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideDocstore(p Params, cfg *config.Config, b *bus.Bus, logger *zap.Logger) (*docstore.Store, error) {
	path := cfg.Store.Path
	if path == "" {
		path = profile.StorePath(p.UserID)
	}
	docs, err := docstore.Open(path, b, logger.Named("docstore"))
	if err != nil {
		return nil, err
	}
	docs.SetWatchInterval(cfg.Store.WatchInterval.Std())
	result, err := docs.Migrate()
	if err != nil {
		_ = docs.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("document store initialized", zap.String("path", path))
	return docs, nil
}

func provideMediaStore(p Params, cfg *config.Config, logger *zap.Logger) (*media.Store, error) {
	if p.SkipMedia {
		if p.ServeMedia {
			return nil, errors.New("media server needs the media store")
		}
		return nil, nil
	}
	path := cfg.Media.Path
	if path == "" {
		path = profile.MediaPath(p.UserID)
	}
	store, err := media.Open(path, cfg.Media.MaxBytes, cfg.Media.PublicURL)
	if err != nil {
		return nil, err
	}
	logger.Info("media store initialized", zap.String("path", path))
	return store, nil
}

func provideMediaServer(store *media.Store, cfg *config.Config, logger *zap.Logger) (*media.Server, error) {
	return media.NewServer(store, cfg.Media.ListenAddr, logger.Named("media"))
}

func provideClient(cfg *config.Config, logger *zap.Logger) (*api.Client, error) {
	return api.New(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout.Std()),
		api.WithLogger(logger.Named("api")),
	)
}

func provideNotices(b *bus.Bus) *notify.Center {
	c := notify.New()
	c.PublishTo(b)
	return c
}

func provideOutbox(docs *docstore.Store, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(docs, b, logger.Named("outbox"), outbox.DefaultOptions())
}

func provideController(p Params, cfg *config.Config, client *api.Client, docs *docstore.Store, sender *outbox.Sender, store *media.Store, notices *notify.Center, b *bus.Bus, logger *zap.Logger) *dashboard.Controller {
	opts := dashboard.OptionsFromConfig(cfg)
	opts.Passive = p.Passive
	var ms dashboard.MediaStore
	if store != nil {
		ms = store
	}
	return dashboard.New(dashboard.Deps{
		Backend: client,
		Docs:    docs,
		Outbox:  sender,
		Media:   ms,
		Notices: notices,
		Bus:     b,
		Logger:  logger.Named("dashboard"),
	}, opts)
}

func provideProjector(cfg *config.Config, docs *docstore.Store, ctrl *dashboard.Controller, logger *zap.Logger) *intsync.Projector {
	return intsync.NewProjector(docs, ctrl, logger.Named("projection"), cfg.Features.Rules)
}

func provideEventLog(b *bus.Bus, logger *zap.Logger) *EventLog {
	return NewEventLog(b, logger.Named("events"))
}

func registerLifecycle(lc fx.Lifecycle, p Params, lk *lock.Lock, docs *docstore.Store, store *media.Store, sender *outbox.Sender, ctrl *dashboard.Controller, projector *intsync.Projector, events *EventLog, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := docs.Start(ctx); err != nil {
				return err
			}
			events.Start(context.Background())
			sender.Start(context.Background())
			ctrl.Attach(projector)
			if err := ctrl.SetIdentity(p.UserID); err != nil {
				logger.Warn("projection unavailable", zap.Error(err))
			}
			logger.Info("dashboard started", zap.Bool("passive", p.Passive))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := sender.Flush(ctx); err != nil {
				logger.Warn("pending writes dropped", zap.Int("pending", sender.Pending()), zap.Error(err))
			}
			_ = ctrl.Close()
			sender.Stop()
			events.Stop()
			projector.Stop()
			docs.Stop()
			if err := docs.Close(); err != nil {
				logger.Warn("error closing document store", zap.Error(err))
			}
			if store != nil {
				if err := store.Close(); err != nil {
					logger.Warn("error closing media store", zap.Error(err))
				}
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("dashboard stopped")
			_ = logger.Sync()
			return nil
		},
	})
}

func registerMediaServer(lc fx.Lifecycle, srv *media.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("media server error", zap.Error(err))
				}
			}()
			logger.Info("media server listening", zap.String("addr", srv.Addr()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			return nil
		},
	})
}
