package sync

import (
	"context"
	"sync"

	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/docstore"
	"go.uber.org/zap"
)

// Subscriber is the document store's subscription side.
type Subscriber interface {
	Subscribe(ctx context.Context, path string) (<-chan docstore.Snapshot, func(), error)
}

// Sink receives the actions derived from snapshots.
type Sink interface {
	Apply(userID string, a dashboard.Action)
}

// Projector keeps the dashboard's config and rules in step with the document
// store for the current identity.
type Projector struct {
	docs   Subscriber
	sink   Sink
	logger *zap.Logger
	rules  bool

	mu     sync.Mutex
	unsubs []func()
	wg     sync.WaitGroup
}

// NewProjector creates a projector. With rules false only the config is followed.
func NewProjector(docs Subscriber, sink Sink, logger *zap.Logger, rules bool) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{
		docs:   docs,
		sink:   sink,
		logger: logger,
		rules:  rules,
	}
}

// Switch drops the current subscriptions and follows userID instead. The
// initial snapshots are applied before it returns. An empty id only drops them.
func (p *Projector) Switch(userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	if userID == "" {
		return nil
	}

	ctx := context.Background()
	cfgCh, unsubCfg, err := p.docs.Subscribe(ctx, docstore.ConfigPath(userID))
	if err != nil {
		return err
	}
	p.unsubs = append(p.unsubs, unsubCfg)
	p.follow(cfgCh, func(snap docstore.Snapshot) {
		if patch, ok := ConfigPatch(snap); ok {
			p.sink.Apply(userID, dashboard.ConfigMerged{Patch: patch})
		}
	})

	if p.rules {
		rulesCh, unsubRules, err := p.docs.Subscribe(ctx, docstore.RulesPath(userID))
		if err != nil {
			p.stopLocked()
			return err
		}
		p.unsubs = append(p.unsubs, unsubRules)
		p.follow(rulesCh, func(snap docstore.Snapshot) {
			if rules, ok := Rules(snap); ok {
				p.sink.Apply(userID, dashboard.RulesProjected{Rules: rules})
			}
		})
	}
	p.logger.Debug("projection following", zap.String("user", userID), zap.Bool("rules", p.rules))
	return nil
}

// Stop drops all subscriptions.
func (p *Projector) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Projector) follow(ch <-chan docstore.Snapshot, apply func(docstore.Snapshot)) {
	if snap, ok := <-ch; ok {
		apply(snap)
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for snap := range ch {
			apply(snap)
		}
	}()
}

func (p *Projector) stopLocked() {
	for _, unsub := range p.unsubs {
		unsub()
	}
	p.unsubs = nil
	p.wg.Wait()
}
