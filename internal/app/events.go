package app

import (
	"context"

	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/outbox"
	"github.com/matheus3301/wppbot/internal/status"
	"go.uber.org/zap"
)

// EventLog writes connection phase changes and abandoned document writes to
// the application log.
type EventLog struct {
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEventLog creates an event log reading from b.
func NewEventLog(b *bus.Bus, logger *zap.Logger) *EventLog {
	return &EventLog{bus: b, logger: logger}
}

// Start subscribes to dashboard and outbox events.
func (l *EventLog) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	phases, unsubPhases := l.bus.Subscribe("dashboard.", 64)
	writes, unsubWrites := l.bus.Subscribe("outbox.", 64)

	go func() {
		defer close(l.done)
		defer unsubPhases()
		defer unsubWrites()
		for {
			select {
			case evt := <-phases:
				l.handle(evt)
			case evt := <-writes:
				l.handle(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the subscription and waits for the loop to exit.
func (l *EventLog) Stop() {
	if l.cancel != nil {
		l.cancel()
		<-l.done
	}
}

func (l *EventLog) handle(evt bus.Event) {
	switch evt.Kind {
	case bus.PhaseChanged:
		change, ok := evt.Payload.(status.PhaseChange)
		if !ok {
			return
		}
		l.logger.Info("phase changed", zap.String("from", string(change.From)), zap.String("to", string(change.To)))
	case bus.OutboxFailed:
		f, ok := evt.Payload.(outbox.Failure)
		if !ok {
			return
		}
		l.logger.Error("document write abandoned",
			zap.String("id", f.ID),
			zap.String("path", f.Path),
			zap.Int("attempts", f.Attempts),
			zap.Error(f.Err),
		)
	}
}
