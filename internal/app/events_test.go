package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/outbox"
	"github.com/matheus3301/wppbot/internal/status"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEventLogRecordsPhaseAndAbandonedWrites(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	b := bus.New()
	l := NewEventLog(b, zap.New(core))
	l.Start(context.Background())
	defer l.Stop()

	b.Emit(bus.PhaseChanged, status.PhaseChange{From: status.Disconnected, To: status.Pairing})
	b.Emit(bus.OutboxFailed, outbox.Failure{ID: "w1", Path: "users/u1/whatsapp/rules/1", Attempts: 3, Err: errors.New("offline")})
	b.Emit(bus.NoticePosted, "ignored")

	deadline := time.Now().Add(2 * time.Second)
	for logs.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := logs.FilterMessage("phase changed").FilterField(zap.String("to", "PAIRING")).Len(); got != 1 {
		t.Errorf("phase entries = %d", got)
	}
	failed := logs.FilterMessage("document write abandoned").All()
	if len(failed) != 1 || failed[0].Level != zapcore.ErrorLevel || failed[0].ContextMap()["attempts"] != int64(3) {
		t.Errorf("write failure entries = %+v", failed)
	}
}

func TestEventLogStopWithoutStart(t *testing.T) {
	NewEventLog(bus.New(), zap.NewNop()).Stop()
}
