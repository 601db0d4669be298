package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/wppbot/internal/api"
	"github.com/matheus3301/wppbot/internal/docstore"
	"github.com/matheus3301/wppbot/internal/media"
	"github.com/matheus3301/wppbot/internal/model"
	"github.com/matheus3301/wppbot/internal/outbox"
	"go.uber.org/zap"
)

// guard is a precondition checked before a command raises its busy flag.
type guard int

const (
	needIdentity guard = iota
	needConnection
)

// begin validates the preconditions of task and raises its busy flag.
func (c *Controller) begin(task Task, g guard) (string, error) {
	next, err := c.dispatchIf(func(s State) error {
		switch {
		case s.UserID == "":
			return ErrNoIdentity
		case g == needConnection && !s.Status.Connected:
			return ErrNotConnected
		case s.Busy[task]:
			return ErrBusy
		}
		return nil
	}, BusySet{Task: task, On: true})
	if err != nil {
		return "", c.reject(err)
	}
	return next.UserID, nil
}

func (c *Controller) end(uid string, task Task) {
	c.Apply(uid, BusySet{Task: task, On: false})
}

// reject surfaces a validation failure as a warning.
func (c *Controller) reject(err error) error {
	var msg string
	switch {
	case errors.Is(err, ErrNoIdentity):
		msg = "Usuário não identificado"
	case errors.Is(err, ErrNotConnected):
		msg = "WhatsApp não está conectado!"
	case errors.Is(err, ErrMissingField):
		msg = "Preencha todos os campos"
	case errors.Is(err, ErrMediaTooLarge):
		msg = fmt.Sprintf("Arquivo muito grande! Máximo %dMB", c.opts.MaxMediaBytes>>20)
	case errors.Is(err, ErrBusy):
		msg = "Aguarde, operação em andamento"
	case errors.Is(err, ErrDisabled):
		msg = "Recurso desativado"
	default:
		msg = err.Error()
	}
	c.notices.Warn(msg)
	c.logger.Debug("command rejected", zap.Error(err))
	return err
}

// fail surfaces a transport or application failure. Server-supplied text wins
// over the generic message.
func (c *Controller) fail(op, generic string, err error) error {
	msg := generic
	var appErr *api.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		msg = appErr.Message
	}
	c.notices.Error(msg)
	c.logger.Error(op+" failed", zap.Error(err))
	return err
}

// Connect starts a WhatsApp session and, once accepted, a pairing task that
// polls for the QR code.
func (c *Controller) Connect(ctx context.Context) error {
	uid, err := c.begin(TaskConnect, needIdentity)
	if err != nil {
		return err
	}
	defer c.end(uid, TaskConnect)

	c.Apply(uid, PairingStarted{})
	if err := c.backend.Connect(ctx, uid); err != nil {
		c.Apply(uid, PairingEnded{})
		var appErr *api.AppError
		if errors.As(err, &appErr) {
			return c.fail("connect", "Erro ao conectar", err)
		}
		return c.fail("connect", "Erro ao conectar ao WhatsApp", err)
	}
	c.notices.Info("Gerando QR Code...")
	c.startPairing(uid)
	return nil
}

// Disconnect closes the WhatsApp session and, once the backend accepts,
// cancels any pairing in progress. A failed request leaves pairing running.
func (c *Controller) Disconnect(ctx context.Context) error {
	uid, err := c.begin(TaskDisconnect, needIdentity)
	if err != nil {
		return err
	}
	defer c.end(uid, TaskDisconnect)

	if err := c.backend.Disconnect(ctx, uid); err != nil {
		var appErr *api.AppError
		if errors.As(err, &appErr) {
			return c.fail("disconnect", "Erro ao desconectar", err)
		}
		return c.fail("disconnect", "Erro ao desconectar WhatsApp", err)
	}
	c.stopPairing()
	c.Apply(uid, Disconnected{})
	c.notices.Success("WhatsApp desconectado com sucesso!")
	return nil
}

// ToggleBot flips automatic replies and mirrors the flag into the config document.
func (c *Controller) ToggleBot(ctx context.Context) error {
	uid, err := c.begin(TaskToggleBot, needIdentity)
	if err != nil {
		return err
	}
	defer c.end(uid, TaskToggleBot)

	enabled := !c.Snapshot().Status.BotEnabled
	if err := c.backend.ToggleBot(ctx, uid, enabled); err != nil {
		return c.fail("toggle bot", "Erro ao alterar estado do bot", err)
	}
	c.Apply(uid, BotToggled{Enabled: enabled})
	if err := c.docs.Set(ctx, docstore.ConfigFieldPath(uid, "botEnabled"), enabled); err != nil {
		return c.fail("toggle bot", "Erro ao alterar estado do bot", err)
	}
	if enabled {
		c.notices.Success("Bot ativado!")
	} else {
		c.notices.Success("Bot desativado!")
	}
	return nil
}

// SetPrompt edits the bot prompt locally. SaveConfig persists it.
func (c *Controller) SetPrompt(prompt string) {
	s := c.Snapshot()
	cfg := s.Config
	cfg.BotPrompt = prompt
	c.Apply(s.UserID, ConfigEdited{Config: cfg})
}

// SetFirstContact edits the first-contact greeting locally.
func (c *Controller) SetFirstContact(enabled bool, message string) {
	s := c.Snapshot()
	cfg := s.Config
	cfg.FirstContact.Enabled = enabled
	cfg.FirstContact.Message = message
	c.Apply(s.UserID, ConfigEdited{Config: cfg})
}

// SaveConfig writes the whole config document.
func (c *Controller) SaveConfig(ctx context.Context) error {
	uid, err := c.begin(TaskSaveConfig, needIdentity)
	if err != nil {
		return err
	}
	defer c.end(uid, TaskSaveConfig)

	cfg := c.Snapshot().Config
	if err := c.docs.Set(ctx, docstore.ConfigPath(uid), cfg); err != nil {
		return c.fail("save config", "Erro ao salvar configurações", err)
	}
	c.notices.Success("Configurações salvas!")
	return nil
}

// SetRuleDraft updates the rule being typed.
func (c *Controller) SetRuleDraft(keyword, response string) {
	c.Apply(c.userID(), RuleDraftSet{Draft: RuleDraft{Keyword: keyword, Response: response}})
}

// AddRule appends an active rule locally and queues its write.
func (c *Controller) AddRule(ctx context.Context, keyword, response string) (model.Rule, error) {
	uid := c.userID()
	switch {
	case uid == "":
		return model.Rule{}, c.reject(ErrNoIdentity)
	case !c.opts.Features.Rules:
		return model.Rule{}, c.reject(ErrDisabled)
	case strings.TrimSpace(keyword) == "" || strings.TrimSpace(response) == "":
		return model.Rule{}, c.reject(fmt.Errorf("%w: keyword and response", ErrMissingField))
	}

	rule := model.Rule{
		ID:       strconv.FormatInt(c.nextRuleID(), 10),
		Keyword:  keyword,
		Response: response,
		Active:   true,
	}
	c.Apply(uid, RuleAdded{Rule: rule})
	if err := c.writeRule(ctx, uid, rule.ID, rule, RuleRestored{ID: rule.ID}); err != nil {
		return model.Rule{}, err
	}
	c.notices.Success("Regra adicionada!")
	return rule, nil
}

// AddDraftRule adds the rule currently in the draft.
func (c *Controller) AddDraftRule(ctx context.Context) (model.Rule, error) {
	d := c.Snapshot().RuleDraft
	return c.AddRule(ctx, d.Keyword, d.Response)
}

// ToggleRule flips a rule's active flag locally and queues its write.
func (c *Controller) ToggleRule(ctx context.Context, id string) error {
	s := c.Snapshot()
	switch {
	case s.UserID == "":
		return c.reject(ErrNoIdentity)
	case !c.opts.Features.Rules:
		return c.reject(ErrDisabled)
	}
	i := s.ruleIndex(id)
	if i < 0 {
		c.notices.Warn("Regra não encontrada")
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	prev := s.Rules[i]
	next := prev
	next.Active = !prev.Active

	c.Apply(s.UserID, RuleToggled{ID: id})
	return c.writeRule(ctx, s.UserID, id, next, RuleRestored{ID: id, Prev: &prev, Index: i})
}

// DeleteRule removes a rule locally and queues a null write.
func (c *Controller) DeleteRule(ctx context.Context, id string) error {
	s := c.Snapshot()
	switch {
	case s.UserID == "":
		return c.reject(ErrNoIdentity)
	case !c.opts.Features.Rules:
		return c.reject(ErrDisabled)
	}
	i := s.ruleIndex(id)
	if i < 0 {
		c.notices.Warn("Regra não encontrada")
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	prev := s.Rules[i]

	c.Apply(s.UserID, RuleRemoved{ID: id})
	if err := c.writeRule(ctx, s.UserID, id, nil, RuleRestored{ID: id, Prev: &prev, Index: i}); err != nil {
		return err
	}
	c.notices.Success("Regra removida!")
	return nil
}

// writeRule persists a local rule change. Through the outbox the write is
// retried; without one it is written inline. A write that never lands is
// compensated from the stored rule, unless a newer write to the same rule is
// still in flight and will settle it.
func (c *Controller) writeRule(ctx context.Context, uid, id string, value any, fallback RuleRestored) error {
	path := docstore.RulePath(uid, id)
	c.trackWrite(path, 1)

	compensate := func(err error) {
		if c.trackWrite(path, -1) > 0 {
			c.logger.Warn("rule write failed, newer write pending", zap.String("rule", id), zap.Error(err))
			return
		}
		c.Apply(uid, c.storedRule(uid, id, fallback))
		c.notices.Error("Erro ao salvar regra. A alteração foi desfeita.")
		c.logger.Error("rule write failed", zap.String("rule", id), zap.Error(err))
	}

	if c.outbox == nil {
		if err := c.docs.Set(ctx, path, value); err != nil {
			compensate(err)
			return err
		}
		c.trackWrite(path, -1)
		return nil
	}

	c.Apply(uid, PendingWritesChanged{Delta: 1})
	_, err := c.outbox.Enqueue(outbox.Op{
		Path:  path,
		Value: value,
		OnSuccess: func() {
			c.trackWrite(path, -1)
			c.Apply(uid, PendingWritesChanged{Delta: -1})
		},
		OnFailure: func(err error) {
			c.Apply(uid, PendingWritesChanged{Delta: -1})
			compensate(err)
		},
	})
	if err != nil {
		c.Apply(uid, PendingWritesChanged{Delta: -1})
		compensate(err)
		return err
	}
	return nil
}

// trackWrite adjusts the in-flight count for path and returns the new count.
func (c *Controller) trackWrite(path string, delta int) int {
	c.writesMu.Lock()
	defer c.writesMu.Unlock()
	n := c.writes[path] + delta
	if n <= 0 {
		delete(c.writes, path)
		return 0
	}
	c.writes[path] = n
	return n
}

// storedRule builds the action that puts rule id back to what the store
// holds. When the store cannot be read, fallback is used instead.
func (c *Controller) storedRule(uid, id string, fallback RuleRestored) RuleRestored {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := c.docs.Get(ctx, docstore.RulePath(uid, id))
	if err != nil {
		c.logger.Warn("read stored rule", zap.String("rule", id), zap.Error(err))
		return fallback
	}
	if !snap.Exists {
		return RuleRestored{ID: id, Index: fallback.Index}
	}
	var rule model.Rule
	if err := snap.Decode(&rule); err != nil {
		c.logger.Warn("decode stored rule", zap.String("rule", id), zap.Error(err))
		return fallback
	}
	rule.ID = id
	return RuleRestored{ID: id, Prev: &rule, Index: fallback.Index}
}

// LoadContacts fetches the contact list. Requires a connected session.
func (c *Controller) LoadContacts(ctx context.Context) error {
	if !c.opts.Features.Contacts {
		return c.reject(ErrDisabled)
	}
	uid, err := c.begin(TaskContacts, needConnection)
	if err != nil {
		return err
	}
	defer c.end(uid, TaskContacts)
	if err := c.fetchContacts(ctx, uid); err != nil {
		return c.fail("load contacts", "Erro ao carregar contatos", err)
	}
	return nil
}

func (c *Controller) fetchContacts(ctx context.Context, uid string) error {
	contacts, err := c.backend.Contacts(ctx, uid)
	if err != nil {
		return err
	}
	c.Apply(uid, ContactsLoaded{Contacts: contacts})
	return nil
}

// SelectContact shows the thread with number and loads its messages.
func (c *Controller) SelectContact(ctx context.Context, number string) error {
	uid := c.userID()
	if uid == "" {
		return c.reject(ErrNoIdentity)
	}
	number = model.NormalizeNumber(number)
	if number == "" {
		return c.reject(fmt.Errorf("%w: contact number", ErrMissingField))
	}
	c.Apply(uid, ContactSelected{Number: number})
	return c.LoadMessages(ctx, number)
}

// LoadMessages fetches the messages exchanged with from.
func (c *Controller) LoadMessages(ctx context.Context, from string) error {
	uid, err := c.begin(TaskMessages, needIdentity)
	if err != nil {
		return err
	}
	defer c.end(uid, TaskMessages)

	msgs, err := c.backend.Messages(ctx, uid, from)
	if err != nil {
		return c.fail("load messages", "Erro ao carregar mensagens", err)
	}
	c.Apply(uid, MessagesLoaded{From: from, Messages: msgs})
	return nil
}

// LoadOrders fetches the order list. Requires a connected session.
func (c *Controller) LoadOrders(ctx context.Context) error {
	if !c.opts.Features.Orders {
		return c.reject(ErrDisabled)
	}
	uid, err := c.begin(TaskOrders, needConnection)
	if err != nil {
		return err
	}
	defer c.end(uid, TaskOrders)
	if err := c.fetchOrders(ctx, uid); err != nil {
		return c.fail("load orders", "Erro ao carregar pedidos", err)
	}
	return nil
}

func (c *Controller) fetchOrders(ctx context.Context, uid string) error {
	orders, err := c.backend.Orders(ctx, uid)
	if err != nil {
		return err
	}
	c.Apply(uid, OrdersLoaded{Orders: orders, Deleted: c.deletedOrders(ctx, uid)})
	return nil
}

// deletedOrders reads the persisted order tombstones. On a read failure only
// the tombstones already in the state apply.
func (c *Controller) deletedOrders(ctx context.Context, uid string) []string {
	snap, err := c.docs.Get(ctx, docstore.DeletedOrdersPath(uid))
	if err != nil {
		c.logger.Warn("read order tombstones", zap.Error(err))
		return nil
	}
	var ids map[string]json.RawMessage
	if !snap.Exists || snap.Decode(&ids) != nil {
		return nil
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	return out
}

// reloadOrders refreshes orders after a command without a payload.
func (c *Controller) reloadOrders(ctx context.Context, uid string) {
	if err := c.fetchOrders(ctx, uid); err != nil {
		c.logger.Warn("order reload failed", zap.Error(err))
	}
}

// LoadHelpRequests fetches pending human-help requests. Requires a connected session.
func (c *Controller) LoadHelpRequests(ctx context.Context) error {
	if !c.opts.Features.HelpRequests {
		return c.reject(ErrDisabled)
	}
	uid, err := c.begin(TaskHelpRequests, needConnection)
	if err != nil {
		return err
	}
	defer c.end(uid, TaskHelpRequests)
	if err := c.fetchHelpRequests(ctx, uid); err != nil {
		return c.fail("load help requests", "Erro ao carregar solicitações de ajuda", err)
	}
	return nil
}

func (c *Controller) fetchHelpRequests(ctx context.Context, uid string) error {
	reqs, err := c.backend.HelpRequests(ctx, uid)
	if err != nil {
		return err
	}
	c.Apply(uid, HelpRequestsLoaded{Requests: reqs})
	return nil
}

// beginOrder validates identity and raises the busy flag of one order.
func (c *Controller) beginOrder(orderID string) (string, error) {
	if !c.opts.Features.Orders {
		return "", c.reject(ErrDisabled)
	}
	if strings.TrimSpace(orderID) == "" {
		return "", c.reject(fmt.Errorf("%w: order id", ErrMissingField))
	}
	next, err := c.dispatchIf(func(s State) error {
		switch {
		case s.UserID == "":
			return ErrNoIdentity
		case s.OrderBusy[orderID]:
			return ErrBusy
		}
		return nil
	}, OrderBusySet{OrderID: orderID, On: true})
	if err != nil {
		return "", c.reject(err)
	}
	return next.UserID, nil
}

func (c *Controller) endOrder(uid, orderID string) {
	c.Apply(uid, OrderBusySet{OrderID: orderID, On: false})
}

// UpdateOrderStatus moves an order to st and reloads the list.
func (c *Controller) UpdateOrderStatus(ctx context.Context, orderID string, st model.OrderStatus) error {
	if !st.Valid() {
		return c.reject(fmt.Errorf("%w: valid order status", ErrMissingField))
	}
	uid, err := c.beginOrder(orderID)
	if err != nil {
		return err
	}
	defer c.endOrder(uid, orderID)

	if err := c.backend.UpdateOrderStatus(ctx, uid, orderID, st); err != nil {
		return c.fail("update order status", "Erro ao atualizar status", err)
	}
	if st == model.StatusDelivered {
		c.notices.Success("Pedido marcado como entregue!")
	} else {
		c.notices.Success("Pedido atualizado: " + st.Label())
	}
	c.reloadOrders(ctx, uid)
	return nil
}

// AdvanceOrder moves an order to the next status in the flow.
func (c *Controller) AdvanceOrder(ctx context.Context, orderID string) error {
	if !c.opts.Features.Orders {
		return c.reject(ErrDisabled)
	}
	o, ok := FindOrder(c.Snapshot().Orders, orderID)
	if !ok {
		c.notices.Warn("Pedido não encontrado")
		return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	next, err := model.NextStatus(o.Status)
	if err != nil {
		c.notices.Warn("Pedido já foi entregue")
		return errors.Join(ErrNotFound, err)
	}
	return c.UpdateOrderStatus(ctx, orderID, next)
}

// ApprovePix confirms a PIX payment and reloads the list.
func (c *Controller) ApprovePix(ctx context.Context, orderID string) error {
	uid, err := c.beginOrder(orderID)
	if err != nil {
		return err
	}
	defer c.endOrder(uid, orderID)

	if err := c.backend.ApprovePix(ctx, uid, orderID); err != nil {
		return c.fail("approve pix", "Erro ao aprovar pagamento", err)
	}
	c.notices.Success("Pagamento PIX aprovado!")
	c.reloadOrders(ctx, uid)
	return nil
}

// DeleteOrder removes an order from the store for good. A tombstone is
// written first so that no later load, in this process or another, shows it
// again.
func (c *Controller) DeleteOrder(ctx context.Context, orderID string) error {
	uid, err := c.beginOrder(orderID)
	if err != nil {
		return err
	}
	defer c.endOrder(uid, orderID)

	if err := c.docs.Set(ctx, docstore.DeletedOrderPath(uid, orderID), true); err != nil {
		return c.fail("delete order", "Erro ao deletar pedido", err)
	}
	if err := c.docs.Set(ctx, docstore.OrderPath(uid, orderID), nil); err != nil {
		return c.fail("delete order", "Erro ao deletar pedido", err)
	}
	c.Apply(uid, OrderDeleted{ID: orderID})
	c.notices.Success("Pedido deletado!")
	c.reloadOrders(ctx, uid)
	return nil
}

// ResolveHelpRequest marks a help request handled and reloads the list.
func (c *Controller) ResolveHelpRequest(ctx context.Context, requestID string) error {
	if !c.opts.Features.HelpRequests {
		return c.reject(ErrDisabled)
	}
	if strings.TrimSpace(requestID) == "" {
		return c.reject(fmt.Errorf("%w: request id", ErrMissingField))
	}
	next, err := c.dispatchIf(func(s State) error {
		switch {
		case s.UserID == "":
			return ErrNoIdentity
		case s.ResolveBusy[requestID]:
			return ErrBusy
		}
		return nil
	}, ResolveBusySet{RequestID: requestID, On: true})
	if err != nil {
		return c.reject(err)
	}
	uid := next.UserID
	defer c.Apply(uid, ResolveBusySet{RequestID: requestID, On: false})

	if err := c.backend.ResolveHelpRequest(ctx, uid, requestID); err != nil {
		return c.fail("resolve help request", "Erro ao resolver solicitação", err)
	}
	c.notices.Success("Solicitação marcada como resolvida!")
	if err := c.fetchHelpRequests(ctx, uid); err != nil {
		c.logger.Warn("help request reload failed", zap.Error(err))
	}
	return nil
}

// SetShowCompleted switches the orders view between active and delivered.
func (c *Controller) SetShowCompleted(show bool) {
	c.Apply(c.userID(), ShowCompletedSet{Show: show})
}

// UploadMedia stores a first-contact attachment and appends it to the media
// list. Oversized files are rejected before anything is read.
func (c *Controller) UploadMedia(ctx context.Context, filename, mimeType string, r io.Reader, size int64) (model.MediaRef, error) {
	switch {
	case c.userID() == "":
		return model.MediaRef{}, c.reject(ErrNoIdentity)
	case !c.opts.Features.FirstContactMedia || c.media == nil:
		return model.MediaRef{}, c.reject(ErrDisabled)
	case c.opts.MaxMediaBytes > 0 && size > c.opts.MaxMediaBytes:
		return model.MediaRef{}, c.reject(fmt.Errorf("%w: %d bytes", ErrMediaTooLarge, size))
	case strings.TrimSpace(filename) == "":
		return model.MediaRef{}, c.reject(fmt.Errorf("%w: filename", ErrMissingField))
	}
	uid, err := c.begin(TaskUpload, needIdentity)
	if err != nil {
		return model.MediaRef{}, err
	}
	defer c.end(uid, TaskUpload)

	c.notices.Info("Fazendo upload...")
	obj, err := c.media.Put(ctx, uid, filename, mimeType, r, size)
	if errors.Is(err, media.ErrTooLarge) {
		return model.MediaRef{}, c.reject(fmt.Errorf("%w: %w", ErrMediaTooLarge, err))
	}
	if err != nil {
		return model.MediaRef{}, c.fail("upload media", "Erro ao fazer upload", err)
	}

	ref := model.MediaRef{
		Type:     model.MediaRemote,
		MimeType: obj.MimeType,
		URL:      obj.URL,
		Filename: obj.Filename,
		Preview:  obj.URL,
	}
	c.Apply(uid, MediaAppended{Ref: ref})
	c.notices.Success("Upload concluído!")
	return ref, nil
}

// UploadFile uploads a local file, guessing its MIME type from the extension
// or the first bytes.
func (c *Controller) UploadFile(ctx context.Context, path string) (model.MediaRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.MediaRef{}, c.fail("upload media", "Erro ao abrir arquivo", err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return model.MediaRef{}, c.fail("upload media", "Erro ao abrir arquivo", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		head := make([]byte, 512)
		n, _ := io.ReadFull(f, head)
		mimeType = http.DetectContentType(head[:n])
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return model.MediaRef{}, c.fail("upload media", "Erro ao abrir arquivo", err)
		}
	}
	return c.UploadMedia(ctx, filepath.Base(path), mimeType, f, info.Size())
}

// RemoveMedia drops the first-contact media item at index. SaveConfig persists it.
func (c *Controller) RemoveMedia(index int) error {
	s := c.Snapshot()
	if index < 0 || index >= len(s.Config.FirstContact.Media) {
		c.notices.Warn("Mídia não encontrada")
		return fmt.Errorf("media %d: %w", index, ErrNotFound)
	}
	c.Apply(s.UserID, MediaRemoved{Index: index})
	return nil
}
