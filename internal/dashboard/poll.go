package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/matheus3301/wppbot/internal/status"
	"go.uber.org/zap"
)

// statusLoop fetches the connection status now and then every StatusInterval.
// Failures are logged and the loop carries on.
func (c *Controller) statusLoop(ctx context.Context, uid string) {
	c.refreshStatus(ctx, uid)
	ticker := time.NewTicker(c.opts.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshStatus(ctx, uid)
		}
	}
}

// RefreshStatus fetches the connection status once.
func (c *Controller) RefreshStatus(ctx context.Context) error {
	uid := c.userID()
	if uid == "" {
		return ErrNoIdentity
	}
	return c.refreshStatus(ctx, uid)
}

func (c *Controller) refreshStatus(ctx context.Context, uid string) error {
	resp, err := c.backend.Status(ctx, uid)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("status poll failed", zap.Error(err))
		}
		return err
	}
	c.Apply(uid, StatusReceived{Status: resp.Apply()})
	return nil
}

// reloadLoop refreshes contacts, orders and help requests as soon as the
// session is connected and then every ReloadInterval while it stays connected.
func (c *Controller) reloadLoop(ctx context.Context, uid string) {
	ticker := time.NewTicker(c.opts.ReloadInterval)
	defer ticker.Stop()

	wasConnected := false
	for {
		connected := c.Snapshot().Status.Connected
		if connected && !wasConnected {
			c.reloadAll(ctx, uid)
		}
		wasConnected = connected

		select {
		case <-ctx.Done():
			return
		case <-c.connSig:
		case <-ticker.C:
			if connected && c.Snapshot().Status.Connected {
				c.reloadAll(ctx, uid)
			}
		}
	}
}

// reloadAll fetches each enabled collection in turn, pausing between
// requests. Errors are logged and swallowed.
func (c *Controller) reloadAll(ctx context.Context, uid string) {
	var steps []func(context.Context, string) error
	if c.opts.Features.Contacts {
		steps = append(steps, c.fetchContacts)
	}
	if c.opts.Features.Orders {
		steps = append(steps, c.fetchOrders)
	}
	if c.opts.Features.HelpRequests {
		steps = append(steps, c.fetchHelpRequests)
	}
	for i, step := range steps {
		if i > 0 && !sleep(ctx, c.opts.ReloadPause) {
			return
		}
		if err := step(ctx, uid); err != nil && ctx.Err() == nil {
			c.logger.Warn("periodic reload failed", zap.Error(err))
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// startPairing replaces any running pairing task for uid with a new one
// bounded by PairingTimeout and PairingMaxAttempts.
func (c *Controller) startPairing(uid string) {
	c.tasks.Lock()
	defer c.tasks.Unlock()
	id := c.identity
	if id == nil || id.uid != uid {
		return
	}
	if id.pairing != nil {
		id.pairing.stop()
	}
	ctx, cancel := context.WithTimeout(id.ctx, c.opts.PairingTimeout)
	task := &pairingTask{cancel: cancel, done: make(chan struct{})}
	id.pairing = task
	go func() {
		defer close(task.done)
		defer cancel()
		c.pair(ctx, uid)
	}()
}

// stopPairing cancels the running pairing task, if any, and waits for it.
func (c *Controller) stopPairing() {
	c.tasks.Lock()
	defer c.tasks.Unlock()
	if c.identity != nil && c.identity.pairing != nil {
		c.identity.pairing.stop()
		c.identity.pairing = nil
	}
}

// PairingActive reports whether a pairing task is running.
func (c *Controller) PairingActive() bool {
	c.tasks.Lock()
	defer c.tasks.Unlock()
	if c.identity == nil || c.identity.pairing == nil {
		return false
	}
	select {
	case <-c.identity.pairing.done:
		return false
	default:
		return true
	}
}

func (c *Controller) pair(ctx context.Context, uid string) {
	for attempt := 1; ; attempt++ {
		resp, err := c.backend.QR(ctx, uid)
		if ctx.Err() != nil {
			c.pairingStopped(ctx, uid)
			return
		}
		if err != nil {
			c.logger.Error("qr poll failed", zap.Int("attempt", attempt), zap.Error(err))
			c.Apply(uid, PairingEnded{})
			c.notices.Error("Erro ao buscar QR Code")
			return
		}
		if resp.Connected {
			c.Apply(uid, PairingSucceeded{})
			c.notices.Success("WhatsApp conectado com sucesso!")
			return
		}
		if resp.QRCode != "" {
			c.Apply(uid, PairingCodeReceived{Code: resp.QRCode})
		}
		if attempt >= c.opts.PairingMaxAttempts {
			c.expirePairing(uid, attempt)
			return
		}
		if !sleep(ctx, c.opts.QRInterval) {
			c.pairingStopped(ctx, uid)
			return
		}
		// The status poll may have seen the session come up in between.
		if c.Snapshot().Phase != status.Pairing {
			return
		}
	}
}

func (c *Controller) pairingStopped(ctx context.Context, uid string) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.expirePairing(uid, 0)
	}
}

func (c *Controller) expirePairing(uid string, attempts int) {
	c.logger.Warn("pairing expired", zap.Int("attempts", attempts), zap.Duration("timeout", c.opts.PairingTimeout))
	c.Apply(uid, PairingEnded{})
	c.notices.Warn("Tempo esgotado aguardando a leitura do QR Code. Tente conectar novamente.")
}
